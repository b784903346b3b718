package syncapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/soundcrate/playercore/internal/domain/tracking"
)

func sampleEvents() []tracking.TrackEvent {
	return []tracking.TrackEvent{
		{TrackID: 1, Timestamp: 1700000000000, Type: tracking.EventPlay},
		{TrackID: 2, Timestamp: 1700000001000, Type: tracking.EventLike},
	}
}

func TestPushEvents(t *testing.T) {
	var gotBody pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/tracking/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "playercore/") {
			t.Errorf("User-Agent = %q", ua)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(pushResponse{Processed: 2})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	processed, err := c.PushEvents(context.Background(), sampleEvents())
	if err != nil {
		t.Fatalf("PushEvents() error: %v", err)
	}
	if processed != 2 {
		t.Errorf("processed = %d, want 2", processed)
	}
	if len(gotBody.Events) != 2 || gotBody.Events[0].TrackID != 1 {
		t.Errorf("server received %+v", gotBody.Events)
	}
}

func TestPushEventsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.PushEvents(context.Background(), sampleEvents()); err == nil {
		t.Fatal("PushEvents() succeeded on 500")
	}
}

func TestPushEventsBreakerFailsFast(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < DefaultBreakerFailures; i++ {
		if _, err := c.PushEvents(ctx, sampleEvents()); err == nil {
			t.Fatalf("attempt %d succeeded against failing backend", i)
		}
	}
	if got := hits.Load(); got != DefaultBreakerFailures {
		t.Fatalf("backend hits = %d, want %d", got, DefaultBreakerFailures)
	}

	// The breaker is open now: the next call fails without reaching the
	// backend at all.
	if _, err := c.PushEvents(ctx, sampleEvents()); err == nil {
		t.Fatal("PushEvents() succeeded with open breaker")
	}
	if got := hits.Load(); got != DefaultBreakerFailures {
		t.Errorf("backend hits = %d after open-breaker call, want %d", got, DefaultBreakerFailures)
	}
}

func TestSignURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/media/sign" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if key := r.URL.Query().Get("key"); key != "tracks/12 34.mp3" {
			t.Errorf("key = %q", key)
		}
		json.NewEncoder(w).Encode(signResponse{URL: "https://cdn.example/t.mp3?X-Amz-Signature=abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.SignURL(context.Background(), "tracks/12 34.mp3")
	if err != nil {
		t.Fatalf("SignURL() error: %v", err)
	}
	if got != "https://cdn.example/t.mp3?X-Amz-Signature=abc" {
		t.Errorf("SignURL() = %q", got)
	}
}

func TestSignURLErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "no such key", http.StatusNotFound)
			},
		},
		{
			name: "empty url",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(signResponse{})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(srv.URL)
			if _, err := c.SignURL(context.Background(), "tracks/1.mp3"); err == nil {
				t.Error("SignURL() succeeded, want error")
			}
		})
	}
}
