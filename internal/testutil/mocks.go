// Package testutil provides shared test helpers and mock implementations.
// This avoids duplicating mock code across test files.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockClock returns a controllable time for reproducible tests.
type MockClock struct {
	mu   sync.Mutex
	time time.Time
}

// NewMockClock creates a clock fixed at the given time.
// If t is zero, uses 2024-01-01 00:00:00 UTC.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &MockClock{time: t}
}

// Now returns the mock time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

// Advance moves the mock time forward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = m.time.Add(d)
}

// RecordedRequest is one request captured by a BackendStub.
type RecordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// BackendStub is an httptest server that records every request and
// answers via a pluggable handler.
type BackendStub struct {
	Server *httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest

	// Handle maps a request to (status, body). Swappable mid-test.
	Handle func(method, path string, body []byte) (int, string)
}

// NewBackendStub starts a stub whose default handler returns 200 with
// an empty JSON object.
func NewBackendStub() *BackendStub {
	s := &BackendStub{
		Handle: func(string, string, []byte) (int, string) { return http.StatusOK, "{}" },
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		handle := s.Handle
		s.mu.Unlock()

		status, resp := handle(r.Method, r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	return s
}

// Close shuts the stub down.
func (s *BackendStub) Close() { s.Server.Close() }

// URL returns the stub's base URL.
func (s *BackendStub) URL() string { return s.Server.URL }

// Requests returns a copy of the captured requests.
func (s *BackendStub) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns how many requests reached the stub.
func (s *BackendStub) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// SetHandle swaps the response handler.
func (s *BackendStub) SetHandle(h func(method, path string, body []byte) (int, string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Handle = h
}
