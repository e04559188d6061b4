// Package raw provides the operation that passes literal directives to the
// transfer tool.
package raw

import (
	"context"
	"errors"
	"fmt"

	"github.com/lftpcmd/lftpcmd/internal/operation"
)

// ErrNoDirectives is returned when the payload holds no directive.
var ErrNoDirectives = errors.New("raw payload has no directives")

func init() {
	operation.Register(&Operation{})
}

// Operation runs the directives found in the message payload, unmodified,
// over one connection.
type Operation struct{}

// Name returns the operation identifier.
func (o *Operation) Name() string {
	return "raw"
}

// Run executes the payload directives and replies with the tool output as
// the payload.
func (o *Operation) Run(ctx context.Context, env operation.Env, ev operation.Event, msg operation.Message) (operation.Message, error) {
	directives, err := Directives(msg["payload"])
	if err != nil {
		return nil, err
	}

	s := env.Session()
	for _, d := range directives {
		s.Raw(d)
	}

	res, err := operation.Exec(ctx, env, o.Name(), s)
	if err != nil {
		return nil, err
	}

	out := msg.Clone()
	out["payload"] = res.Data
	return out, nil
}

// Directives extracts directives from a string or list-of-strings payload.
func Directives(payload any) ([]string, error) {
	var out []string

	switch v := payload.(type) {
	case string:
		out = append(out, v)
	case []string:
		out = append(out, v...)
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("raw payload item %d must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
	case nil:
	default:
		return nil, fmt.Errorf("raw payload must be a string or a list of strings, got %T", payload)
	}

	for _, d := range out {
		if d != "" {
			return out, nil
		}
	}
	return nil, ErrNoDirectives
}

// Ensure Operation implements the operation.Operation interface.
var _ operation.Operation = (*Operation)(nil)
