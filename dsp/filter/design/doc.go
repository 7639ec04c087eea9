// Package design provides RBJ-style biquad coefficient designers and the
// BS.1770 K-weighting pre-filter built from them.
package design
