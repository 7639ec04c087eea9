// Package compare measures how far a model's output deviates from a
// reference rendering of the same input.
//
// It is used to check activation approximations and architecture variants
// against each other:
//
//   - RMS and MaxAbs: sample-wise difference
//   - SNR: reference energy over difference energy, in dB
//   - SpectralDeviation: RMS dB distance of Hann-windowed, frame-averaged
//     power spectra, ignoring bins far below the reference peak
//
// # Usage
//
//	res, err := compare.Compare(exact, fast)
//	fmt.Printf("RMS %.2e, SNR %.1f dB, spectral %.2f dB\n", res.RMS, res.SNR, res.SpectralDeviation)
package compare
