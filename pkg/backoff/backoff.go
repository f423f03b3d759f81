// Package backoff provides the retry policy used for scheduler submissions.
package backoff

import (
	"context"
	"math"
	"time"
)

// Default delays applied when a Policy leaves them zero.
const (
	DefaultInitial = 100 * time.Millisecond
	DefaultMax     = 5 * time.Second
)

// Policy describes how many times to retry and how long to wait in between.
type Policy struct {
	Retries int           // retries after the first attempt, 0 disables retrying
	Initial time.Duration // delay before the first retry
	Max     time.Duration // delay ceiling
}

// Attempts returns the total number of attempts the policy allows.
func (p Policy) Attempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// Delay returns the wait before the given retry.
// Retry 1 waits Initial, retry 2 waits Initial*2, and so on up to Max.
func (p Policy) Delay(retry int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = DefaultInitial
	}
	ceiling := p.Max
	if ceiling <= 0 {
		ceiling = DefaultMax
	}
	if retry < 1 {
		return initial
	}

	d := float64(initial) * math.Pow(2, float64(retry-1))
	if d > float64(ceiling) {
		return ceiling
	}
	return time.Duration(d)
}

// Wait blocks for Delay(retry) or until ctx is done.
func (p Policy) Wait(ctx context.Context, retry int) error {
	timer := time.NewTimer(p.Delay(retry))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
