package service

import "time"

// Clock seams for tests in package service_test.

func SetBootstrapClock(b *Bootstrapper, now func() time.Time) { b.now = now }

func SetTokenClock(t *TokenIssuer, now func() time.Time) { t.now = now }

func SetBucketClock(tb *TokenBucket, now func() time.Time) {
	tb.mu.Lock()
	tb.now = now
	tb.mu.Unlock()
}

func EvictIdle(tb *TokenBucket) { tb.evictIdle() }
