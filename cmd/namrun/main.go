// Command namrun runs neural amp models over WAV files.
//
// Usage:
//
//	namrun process [flags] model.nam in.wav out.wav
//	namrun batch [flags] model.nam outdir in1.wav in2.wav ...
//	namrun info model.nam [more.json ...]
//	namrun compare [flags] model.nam [in.wav]
//	namrun bench [flags] model.nam
//	namrun export [--encoding f16] model.nam out.bin
//	namrun env
//
// Defaults for the shared flags come from the NAM_* environment variables;
// see "namrun env".
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
)

func main() {
	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
