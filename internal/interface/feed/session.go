// Package feed talks to the challenge-guarded upstream schedule endpoint.
// The scheduling and retry logic above it only sees the two capability
// interfaces here; how the challenge is actually passed is an adapter
// detail.
package feed

import (
	"context"
	"errors"
)

// ErrSession marks failures to acquire or keep a challenge-passing session.
// Callers test with errors.Is; the executor treats it like any other
// attempt failure.
var ErrSession = errors.New("feed session error")

// Session can query the upstream schedule once the bot challenge has been
// passed. A session acquired for one invocation is reused for every date
// fetched within it.
type Session interface {
	// FetchSchedule returns the raw schedule document for one local
	// flight date (YYYY-MM-DD).
	FetchSchedule(ctx context.Context, flightDate string) ([]byte, error)
	Close()
}

// SessionProvider acquires a Session capable of passing the upstream
// challenge
type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
}
