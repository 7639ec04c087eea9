//go:build arm64 && !purego

package activation

import (
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/arm64/neon"
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/generic"
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
)
