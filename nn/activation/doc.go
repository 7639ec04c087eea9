// Package activation provides the tanh and sigmoid kernels used by the
// recurrent and convolutional networks.
//
// Three implementations share one contract:
//
//   - KindFast (default): a rational polynomial tanh, clamped to [-1, 1],
//     with sigmoid derived as 0.5*(tanh(x/2)+1). Within 1e-3 of the exact
//     functions over [-10, 10].
//   - KindExact: float32 tanh and exp from github.com/chewxy/math32.
//   - KindApprox: sigmoid built on the exponential approximation of
//     github.com/meko-christian/algo-approx, tanh derived as 2*sigmoid(2x)-1.
//
// Block kernels for KindFast are registered per SIMD level and the best one
// for the running CPU is resolved once, on first use of For.
package activation
