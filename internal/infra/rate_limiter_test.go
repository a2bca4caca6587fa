package infra

import (
	"testing"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(3, 0.001) // slow refill so only the burst counts

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("TryAcquire %d should succeed within burst", i)
		}
	}
	if rl.TryAcquire() {
		t.Fatal("TryAcquire should fail once burst is exhausted")
	}
}

func TestRateLimiterWaitWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 100)
	done := make(chan struct{})
	go func() {
		rl.Wait()
		close(done)
	}()
	<-done
}
