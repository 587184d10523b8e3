package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/teranos/reportcopilot/errors"
)

// Paced spaces generation calls to at most callsPerMinute, with a burst of one
type Paced struct {
	next    Generator
	limiter *rate.Limiter
}

// NewPaced wraps next. callsPerMinute <= 0 returns next unchanged.
func NewPaced(next Generator, callsPerMinute int) Generator {
	if callsPerMinute <= 0 {
		return next
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), 1),
	}
}

// Generate waits for a slot, then delegates
func (p *Paced) Generate(ctx context.Context, system, user string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", errors.Wrap(err, "waiting for generation slot")
	}
	return p.next.Generate(ctx, system, user)
}
