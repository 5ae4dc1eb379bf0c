package propagator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/event-relay/internal/logging"
)

var testEvents = []json.RawMessage{
	json.RawMessage(`{"event_type":"test","event_payload":"data"}`),
}

func newTestRunner(t *testing.T, url string, events []json.RawMessage) *Runner {
	t.Helper()
	r, err := NewRunner(Config{URL: url, Interval: 5 * time.Millisecond, Timeout: time.Second}, events, logging.Discard())
	require.NoError(t, err)
	return r
}

// runUntil runs r in the background and cancels it once done reports true.
func runUntil(t *testing.T, r *Runner, done func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewRunner_EmptyPool(t *testing.T) {
	_, err := NewRunner(Config{URL: "http://127.0.0.1/event"}, nil, logging.Discard())
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestRun_PostsEvents(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, r.Method+" "+r.URL.Path+" "+r.Header.Get("Content-Type")+" "+string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	r := newTestRunner(t, server.URL+"/event", testEvents)
	runUntil(t, r, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(bodies) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `POST /event application/json {"event_type":"test","event_payload":"data"}`, bodies[0])
}

func TestRun_PicksFromPool(t *testing.T) {
	events := []json.RawMessage{
		json.RawMessage(`{"event_type":"a","event_payload":"1"}`),
		json.RawMessage(`{"event_type":"b","event_payload":"2"}`),
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen[string(body)]++
		mu.Unlock()
	}))
	defer server.Close()

	r := newTestRunner(t, server.URL, events)
	var calls int
	r.pick = func(n int) int {
		calls++
		return calls % n
	}

	runUntil(t, r, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	})
}

func TestRun_ContinuesAfterRejection(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := newTestRunner(t, server.URL, testEvents)
	runUntil(t, r, func() bool { return hits.Load() >= 3 })
}

func TestRun_ContinuesAfterTransportError(t *testing.T) {
	var hits atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits.Add(1)
		return nil, io.ErrUnexpectedEOF
	})

	r := newTestRunner(t, "http://192.0.2.1/event", testEvents)
	r.HTTPClient = &http.Client{Transport: transport}

	runUntil(t, r, func() bool { return hits.Load() >= 3 })
}

func TestRun_StopsWhenCanceled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	r, err := NewRunner(Config{URL: server.URL, Interval: time.Hour}, testEvents, logging.Discard())
	require.NoError(t, err)

	runUntil(t, r, func() bool { return hits.Load() == 1 })
	assert.Equal(t, int32(1), hits.Load())
}

func TestSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	r := newTestRunner(t, server.URL, testEvents)
	status, err := r.Send(context.Background(), testEvents[0])

	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
