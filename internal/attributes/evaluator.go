// Package attributes evaluates user-defined attribute expressions against
// emitted profile records, letting a run annotate its records with derived
// fields without touching the parsing core.
package attributes

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog"

	"pintrace/internal/config"
	"pintrace/internal/profile"
)

// Evaluator handles compilation and evaluation of custom attribute
// expressions. Expressions are compiled once, up front.
type Evaluator struct {
	customAttrs   []config.CustomAttribute
	compiledExprs []*vm.Program
	log           zerolog.Logger
}

// exprEnv builds the expression environment for one record. The record's
// common fields are bound directly; the full record is reachable as "record"
// for the mode-specific keys.
func exprEnv(rec profile.Record) map[string]any {
	return map[string]any{
		"uid":      rec.String("uid"),
		"caller":   rec.String("caller"),
		"workload": rec.String("workload"),
		"type":     rec.String("type"),
		"amount":   rec.Int("amount"),
		"tid":      rec.Int("tid"),
		"pid":      rec.Int("pid"),
		"record":   map[string]any(rec),
	}
}

// NewEvaluator creates a new attribute evaluator, pre-compiling all custom
// attribute expressions.
func NewEvaluator(customAttrs []config.CustomAttribute, log zerolog.Logger) (*Evaluator, error) {
	typeEnv := exprEnv(profile.Record{})

	compiledExprs := make([]*vm.Program, len(customAttrs))
	for i, attr := range customAttrs {
		program, err := expr.Compile(attr.Expression, expr.Env(typeEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression for attribute %q: %w", attr.Name, err)
		}
		compiledExprs[i] = program
	}

	return &Evaluator{
		customAttrs:   customAttrs,
		compiledExprs: compiledExprs,
		log:           log,
	}, nil
}

// Annotate evaluates every custom attribute expression against rec and stores
// the results in it. A failing expression is reported and skipped; the other
// attributes are still applied.
func (e *Evaluator) Annotate(rec profile.Record) {
	for i, attr := range e.customAttrs {
		output, err := expr.Run(e.compiledExprs[i], exprEnv(rec))
		if err != nil {
			e.log.Warn().Err(err).Str("attribute", attr.Name).Msg("failed to evaluate attribute expression")
			continue
		}
		rec[attr.Name] = output
	}
}
