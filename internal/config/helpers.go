package config

import (
	"strings"

	"github.com/furkntrg41/opus-trade-bot/internal/core"
)

func newDotToUnderscoreReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func symbolFrom(text string) core.Symbol {
	return core.NewSymbol(strings.ToUpper(text))
}
