package derive

import (
	"strings"

	"github.com/starford/munchie/internal/apperr"
)

// Strategy selects how folders map onto collections.
type Strategy string

const (
	// StrategySmart creates a flat collection for every folder that directly
	// contains models.
	StrategySmart Strategy = "smart"
	// StrategyStrict mirrors the folder hierarchy: a folder qualifies when it or
	// any descendant contains models, and parentId links to the nearest
	// qualifying ancestor below the scan root.
	StrategyStrict Strategy = "strict"
	// StrategyTopLevel creates one collection per immediate child of the scan
	// root holding every model of its subtree.
	StrategyTopLevel Strategy = "top-level"
)

// Strategies lists the accepted values.
var Strategies = []Strategy{StrategySmart, StrategyStrict, StrategyTopLevel}

// ParseStrategy accepts a strategy name; empty selects StrategySmart.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategySmart:
		return StrategySmart, nil
	case StrategyStrict:
		return StrategyStrict, nil
	case StrategyTopLevel, "toplevel", "top_level":
		return StrategyTopLevel, nil
	}
	return "", apperr.Invalid("strategy", "must be one of smart, strict, top-level")
}
