// Package wavenet implements the streaming dilated-convolution network used
// by WaveNet-style amp models.
//
// A Model is an ordered list of LayerArrays. Each array projects its input
// to Channels rows, runs one Layer per dilation and projects the summed
// layer activations (the head accumulator) to HeadSize rows. Array i takes
// the layer output and head output of array i-1; the model output is the
// head scale times the single head row of the last array.
//
// Every Layer keeps its own rewinding history (see package history), so
// Process accepts blocks of any length and produces the same output however
// the input is split. Process does not allocate.
package wavenet
