//go:build purego || !(amd64 || arm64)

package activation

import (
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/generic"
	_ "github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
)
