package provider

import (
	"context"
)

// Generator is the generation backend contract used by the pipeline steps:
// one system prompt plus one user prompt in, generated text out.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// GeneratorFunc adapts a function to Generator
type GeneratorFunc func(ctx context.Context, system, user string) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// CallInfo identifies a generation call for usage tracking and logs
type CallInfo struct {
	JobID    string
	Step     string
	Template string
}

type callInfoKey struct{}

// WithCall attaches call identity to ctx
func WithCall(ctx context.Context, info CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallFromContext returns the call identity attached by WithCall
func CallFromContext(ctx context.Context) CallInfo {
	info, _ := ctx.Value(callInfoKey{}).(CallInfo)
	return info
}
