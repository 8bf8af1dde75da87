package redis

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/tommyorndorff/icinga2/internal/events"
)

// celFilter wraps a compiled CEL program evaluated against each event a
// subscriber would otherwise receive. When disabled, Eval always returns
// true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	// "type" collides with a CEL standard identifier, hence eventType.
	env, err := cel.NewEnv(
		cel.Variable("eventType", cel.StringType),
		// Full decoded event for field-level filtering
		cel.Variable("event", cel.DynType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the expression against ev. Evaluation errors and non-bool
// results count as no-match.
func (f celFilter) Eval(ev events.Event) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"eventType": ev.Type(),
		"event":     map[string]any(ev),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
