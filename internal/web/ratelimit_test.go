package web

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.0.0.1", true},
		{"10.0.0.1", true},
		{"10.0.0.1", false},
		{"10.0.0.2", true},
	}
	for i, tt := range tests {
		if got := rl.allow(tt.ip); got != tt.want {
			t.Errorf("call %d allow(%s) = %v, want %v", i, tt.ip, got, tt.want)
		}
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("10.0.0.1") {
		t.Error("allow() after window = false, want true")
	}
}

func TestRateLimiter_Evict(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(5, time.Minute)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(10 * time.Minute)
	rl.evict()

	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("visitors after evict = %d, want 0", n)
	}
}
