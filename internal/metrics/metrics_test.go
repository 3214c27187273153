package metrics

import (
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("GET", "/api/posts", 200, 10*time.Millisecond)
	m.RecordRequest("GET", "/api/posts", 200, 20*time.Millisecond)
	m.RecordRequest("GET", "/api/posts", 500, 5*time.Millisecond)

	snap := m.Snapshot()
	if snap.Requests["/api/posts:GET"] != 3 {
		t.Errorf("request count = %d, want 3", snap.Requests["/api/posts:GET"])
	}
	if snap.RequestErrors["/api/posts:GET:5xx"] != 1 {
		t.Errorf("error count = %d, want 1", snap.RequestErrors["/api/posts:GET:5xx"])
	}
	if snap.RequestDurations["/api/posts:GET"].Count != 3 {
		t.Errorf("duration count = %d, want 3", snap.RequestDurations["/api/posts:GET"].Count)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/posts", "/api/posts"},
		{"/api/post/0b3f9b1e-4f7c-4a7e-8a3b-2f9d6a1c5e4d", "/api/post/{id}"},
		{"/api/message/0b3f9b1e-4f7c-4a7e-8a3b-2f9d6a1c5e4d", "/api/message/{id}"},
	}

	for _, tt := range tests {
		if got := normalizeEndpoint(tt.path); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestConnectionGauge(t *testing.T) {
	m := New()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := m.ActiveConnections(); got != 1 {
		t.Errorf("ActiveConnections() = %d, want 1", got)
	}
}

func TestDeliveryCounters(t *testing.T) {
	m := New()

	m.MessageDelivered()
	m.MessageDelivered()
	m.MessageDropped()

	snap := m.Snapshot()
	if snap.MessagesDelivered != 2 {
		t.Errorf("delivered = %d, want 2", snap.MessagesDelivered)
	}
	if snap.MessagesDropped != 1 {
		t.Errorf("dropped = %d, want 1", snap.MessagesDropped)
	}
}

func TestHistogramObserve(t *testing.T) {
	h := NewHistogram()
	h.Observe(0.004)
	h.Observe(0.2)

	if h.count != 2 {
		t.Errorf("count = %d, want 2", h.count)
	}
	// 0.004 lands in every bucket, 0.2 starting at the 250ms bucket
	if h.bucketVals[0] != 1 {
		t.Errorf("first bucket = %d, want 1", h.bucketVals[0])
	}
	if h.bucketVals[5] != 2 {
		t.Errorf("250ms bucket = %d, want 2", h.bucketVals[5])
	}
}
