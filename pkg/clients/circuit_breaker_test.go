package clients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBreaker(breakerTimeout time.Duration) *CircuitBreaker {
	cfg := DefaultHTTPConfig()
	cfg.FailureThreshold = 3
	cfg.SuccessThreshold = 2
	cfg.BreakerTimeout = breakerTimeout
	return NewCircuitBreaker(cfg, zap.NewNop())
}

func TestCircuitBreakerOpensOnConsecutiveFailures(t *testing.T) {
	cb := testBreaker(time.Minute)

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow())

	// Successes keep the windowed failure rate at or below one half so the
	// consecutive-failure threshold is what trips the breaker
	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreakerOpensOnFailureRate(t *testing.T) {
	cb := testBreaker(time.Minute)

	// A single failure against an empty window is a 100% failure rate
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(time.Minute)

	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()
	cb.RecordSuccess()

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// Never three consecutive failures and the failure rate stays under
	// one half, so the breaker remains closed
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	// First request after the timeout probes half-open
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, cb.Allow())
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestSlidingWindowFailureRate(t *testing.T) {
	sw := NewSlidingWindow(10*time.Second, 60*time.Second)

	assert.Equal(t, 0.0, sw.GetFailureRate())

	sw.RecordRequest(true)
	sw.RecordRequest(true)
	sw.RecordRequest(false)
	sw.RecordRequest(false)

	assert.InDelta(t, 0.5, sw.GetFailureRate(), 0.001)
}
