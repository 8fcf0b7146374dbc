// Package patch mutates JSON documents according to LLM-generated patch
// instructions. Two interchangeable strategies are provided: a restricted jq
// expression handed to an external jq process, and an in-process RFC 6902
// JSON Patch applier. Both are total: malformed or unsafe input voids the
// patch (the input document comes back unchanged) instead of raising.
package patch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Strategy names accepted by configuration.
const (
	StrategyJSONPatch = "jsonpatch"
	StrategyJQ        = "jq"
)

// Applier applies one patch source to a document and returns the patched
// (or, on rejection, original) document. Implementations never return an
// error past this boundary; the caller re-validates the result and decides
// whether to keep correcting.
type Applier interface {
	Name() string
	Apply(ctx context.Context, doc map[string]any, src string) map[string]any
}

// ForStrategy builds the applier named by strategy. bin and timeout only
// apply to the jq strategy.
func ForStrategy(strategy, bin string, timeout time.Duration, logger *zap.Logger) (Applier, error) {
	switch strategy {
	case StrategyJSONPatch, "":
		return NewJSONPatch(logger), nil
	case StrategyJQ:
		return NewJQ(bin, timeout, logger), nil
	}
	return nil, fmt.Errorf("unknown patch strategy %q", strategy)
}
