// Package rational holds the rational tanh approximation shared by the
// block kernels of every SIMD level.
package rational

const (
	n0 = 2.45550750702956
	n1 = 0.893229853513558
	n2 = 0.821226666969744
	d0 = 2.44506634652299
	d1 = 0.814642734961073
)

// Tanh approximates tanh(x). The result is clamped to [-1, 1].
func Tanh(x float32) float32 {
	ax := x
	if ax < 0 {
		ax = -ax
	}

	x2 := x * x
	den := x + d1*x*ax
	if den < 0 {
		den = -den
	}

	y := x * (n0 + n0*ax + (n1+n2*ax)*x2) / (d0 + (d0+x2)*den)

	switch {
	case y > 1:
		return 1
	case y < -1:
		return -1
	default:
		return y
	}
}

// Sigmoid approximates 1/(1+exp(-x)) as 0.5*(Tanh(x/2)+1).
func Sigmoid(x float32) float32 {
	return 0.5 * (Tanh(0.5*x) + 1)
}
