package wsclient

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	base := time.Second
	max := 30 * time.Second

	prev := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := Backoff(attempt, base, max)
		if d < base {
			t.Errorf("attempt %d: %v below base", attempt, d)
		}
		// 25% jitter on top of the capped value is the ceiling.
		if d > max+max/4 {
			t.Errorf("attempt %d: %v exceeds cap plus jitter", attempt, d)
		}
		if attempt <= 5 && d+d/4 < prev {
			t.Errorf("attempt %d: %v shrank well below previous %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestBackoffFirstAttempt(t *testing.T) {
	base := time.Second
	d := Backoff(1, base, time.Minute)
	if d < base || d > base+base/4 {
		t.Errorf("attempt 1: %v, want within [1s, 1.25s]", d)
	}

	// Attempts below 1 behave like the first.
	d = Backoff(0, base, time.Minute)
	if d < base || d > base+base/4 {
		t.Errorf("attempt 0: %v, want within [1s, 1.25s]", d)
	}
}

// A drop after a working connection starts the backoff over. Only dials that
// never succeed keep escalating the wait.
func TestNextAttemptResetsAfterConnect(t *testing.T) {
	attempt := 1
	for i := 0; i < 4; i++ {
		attempt = nextAttempt(attempt, false)
	}
	if attempt != 5 {
		t.Fatalf("after 4 failed dials attempt = %d, want 5", attempt)
	}

	attempt = nextAttempt(attempt, true)
	if attempt != 1 {
		t.Errorf("after a successful connection attempt = %d, want 1", attempt)
	}
}

func TestMessageDecodesPushFrame(t *testing.T) {
	raw := `{"type":"order_update","order":{"id":"o-1","status":"preparing"},"timestamp":"2025-06-01T12:00:00Z"}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "order_update" {
		t.Errorf("type = %s, want order_update", msg.Type)
	}
	var order struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(msg.Order, &order); err != nil {
		t.Fatalf("order field: %v", err)
	}
	if order.ID != "o-1" || order.Status != "preparing" {
		t.Errorf("order = %+v", order)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not decoded")
	}
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{URL: "ws://localhost/ws/orders", Token: "tok"})
	if c.cfg.PingInterval != 30*time.Second {
		t.Errorf("ping interval = %v, want 30s", c.cfg.PingInterval)
	}
	if c.cfg.BackoffBase != time.Second || c.cfg.BackoffMax != time.Minute {
		t.Errorf("backoff defaults = %v/%v", c.cfg.BackoffBase, c.cfg.BackoffMax)
	}
}
