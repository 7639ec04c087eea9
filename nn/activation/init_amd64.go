//go:build amd64 && !purego

package activation

import (
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/amd64/avx2" // register AVX2 backend
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/generic"    // register generic backend
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"   // initialize backend registry
)
