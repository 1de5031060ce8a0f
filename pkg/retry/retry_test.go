package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffFibonacci(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffType: "fibonacci", InitialDelay: 100, MaxDelay: 60000}

	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1))
	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 2))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 3))
	assert.Equal(t, 300*time.Millisecond, Backoff(cfg, 4))
	assert.Equal(t, 500*time.Millisecond, Backoff(cfg, 5))
}

func TestBackoffExponential(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffType: "exponential", InitialDelay: 100, MaxDelay: 60000}

	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 2))
	assert.Equal(t, 400*time.Millisecond, Backoff(cfg, 3))
	assert.Equal(t, 800*time.Millisecond, Backoff(cfg, 4))
}

func TestBackoffLinear(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffType: "linear", InitialDelay: 100, MaxDelay: 60000}

	assert.Equal(t, 100*time.Millisecond, Backoff(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 2))
	assert.Equal(t, 300*time.Millisecond, Backoff(cfg, 3))
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	cfg := Config{MaxRetries: 10, BackoffType: "exponential", InitialDelay: 1000, MaxDelay: 5000}

	assert.Equal(t, 4*time.Second, Backoff(cfg, 3))
	assert.Equal(t, 5*time.Second, Backoff(cfg, 4))
	assert.Equal(t, 5*time.Second, Backoff(cfg, 10))
}

func TestBackoffUnknownTypeDefaultsToFibonacci(t *testing.T) {
	cfg := Config{MaxRetries: 3, BackoffType: "bogus", InitialDelay: 100, MaxDelay: 60000}

	assert.Equal(t, 200*time.Millisecond, Backoff(cfg, 3))
}
