// Package ratelimit bounds flag-submission throughput per competitor so that
// grading-script invocations cannot be used to overload the server. The
// counter state is deliberately kept out of the main store.
package ratelimit

import "context"

// Limiter answers whether one more submission is allowed for a competitor
// right now.
type Limiter interface {
	Allow(ctx context.Context, competitorID uint) (bool, error)
}
