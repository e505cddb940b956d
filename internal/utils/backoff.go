package utils

import (
	"math/rand"
	"time"
)

// Backoff retries a function with exponential backoff plus jitter.
type Backoff struct {
	base       time.Duration
	maxRetries int
}

func NewBackoff(base time.Duration, maxRetries int) Backoff {
	return Backoff{base: base, maxRetries: maxRetries}
}

func (b Backoff) Do(fn func(i int) error) error {
	var err error
	for i := 0; i <= b.maxRetries; i++ {
		err = fn(i)
		if err == nil {
			return nil
		}
		if i == b.maxRetries {
			break
		}
		sleep := time.Duration(1<<i) * b.base
		sleep += time.Duration(rand.Int63n(int64(b.base) + 1))
		time.Sleep(sleep)
	}
	return err
}
