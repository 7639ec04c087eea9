// Package biquad provides second-order IIR filter runtime primitives.
//
// A [Section] implements Direct Form II Transposed processing for one
// second-order section defined by [Coefficients]. Sections can be cascaded
// via [Chain]. Coefficient design lives in dsp/filter/design.
package biquad
