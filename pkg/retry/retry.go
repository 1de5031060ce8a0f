package retry

import "time"

// Config controls retry counts and backoff growth. Delays are in
// milliseconds to keep the env configuration integral.
type Config struct {
	MaxRetries   int
	BackoffType  string
	InitialDelay int
	MaxDelay     int
}

// DefaultConfig returns the retry configuration used when none is set.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		BackoffType:  "fibonacci",
		InitialDelay: 1000,
		MaxDelay:     60000,
	}
}

// Backoff calculates the delay before the given attempt (1-based).
func Backoff(cfg Config, attempt int) time.Duration {
	var delayMs int
	switch cfg.BackoffType {
	case "fibonacci":
		delayMs = fibonacciBackoff(cfg.InitialDelay, attempt)
	case "exponential":
		delayMs = exponentialBackoff(cfg.InitialDelay, attempt)
	case "linear":
		delayMs = linearBackoff(cfg.InitialDelay, attempt)
	default:
		delayMs = fibonacciBackoff(cfg.InitialDelay, attempt)
	}

	if delayMs > cfg.MaxDelay {
		delayMs = cfg.MaxDelay
	}

	return time.Duration(delayMs) * time.Millisecond
}

// fibonacciBackoff calculates Fibonacci backoff delay
func fibonacciBackoff(initial int, attempt int) int {
	if attempt <= 1 {
		return initial
	}
	// Fibonacci sequence: 1, 1, 2, 3, 5, 8, 13, 21...
	a, b := 1, 1
	for i := 2; i < attempt; i++ {
		a, b = b, a+b
	}
	return initial * b
}

// exponentialBackoff calculates exponential backoff delay
func exponentialBackoff(initial int, attempt int) int {
	multiplier := 1
	for i := 1; i < attempt; i++ {
		multiplier *= 2
	}
	return initial * multiplier
}

// linearBackoff calculates linear backoff delay
func linearBackoff(initial int, attempt int) int {
	return initial * attempt
}
