package monitor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func probeTarget(url, expected string, timeout int) PollTarget {
	return PollTarget{
		ID:                   "poll-1",
		Name:                 "probe",
		URL:                  url,
		ExpectedText:         expected,
		CheckIntervalSeconds: 60,
		TimeoutSeconds:       timeout,
		IsActive:             true,
	}
}

func TestProbe_ExpectedText(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		expected   string
		wantStatus Status
		wantErr    string
	}{
		{"present", http.StatusOK, "status: OK", "OK", StatusHealthy, ""},
		{"case insensitive", http.StatusOK, "all ok here", "OK", StatusHealthy, ""},
		{"missing", http.StatusOK, "FAIL", "OK", StatusUnhealthy, "expected text not found"},
		{"no expectation", http.StatusOK, "anything", "", StatusHealthy, ""},
		{"bad status wins", http.StatusServiceUnavailable, "OK", "OK", StatusUnhealthy, "HTTP 503: Service Unavailable"},
		{"no content", http.StatusNoContent, "", "", StatusHealthy, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			p := NewProber("Vigil/test", fixedClock(testEpoch))
			got := p.Probe(context.Background(), probeTarget(srv.URL, tc.expected, 5))

			if got.Status != tc.wantStatus {
				t.Errorf("Status = %q, want %q (error %q)", got.Status, tc.wantStatus, got.ErrorMessage)
			}
			if got.ErrorMessage != tc.wantErr {
				t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, tc.wantErr)
			}
			if got.StatusCode != tc.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tc.status)
			}
			if got.TargetID != "poll-1" {
				t.Errorf("TargetID = %q, want poll-1", got.TargetID)
			}
			if !got.CheckedAt.Equal(testEpoch) {
				t.Errorf("CheckedAt = %v, want %v", got.CheckedAt, testEpoch)
			}
		})
	}
}

func TestProbe_SendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewProber("Vigil/1.2.3", nil)
	p.Probe(context.Background(), probeTarget(srv.URL, "", 5))

	if ua != "Vigil/1.2.3" {
		t.Errorf("User-Agent = %q, want %q", ua, "Vigil/1.2.3")
	}
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewProber("Vigil/test", nil)
	start := time.Now()
	got := p.Probe(context.Background(), probeTarget(srv.URL, "", 1))
	elapsed := time.Since(start)

	if got.Status != StatusUnhealthy {
		t.Fatalf("Status = %q, want unhealthy", got.Status)
	}
	if got.ErrorMessage != "timeout after 1s" {
		t.Errorf("ErrorMessage = %q, want %q", got.ErrorMessage, "timeout after 1s")
	}
	if elapsed > 3*time.Second {
		t.Errorf("probe took %v, want about 1s", elapsed)
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewProber("Vigil/test", nil)
	got := p.Probe(context.Background(), probeTarget("http://"+addr+"/health", "", 2))

	if got.Status != StatusUnhealthy {
		t.Fatalf("Status = %q, want unhealthy", got.Status)
	}
	if !strings.HasPrefix(got.ErrorMessage, "connection error: ") {
		t.Errorf("ErrorMessage = %q, want connection error prefix", got.ErrorMessage)
	}
	if strings.Contains(got.ErrorMessage, "Get \"") {
		t.Errorf("ErrorMessage = %q still carries the url.Error prefix", got.ErrorMessage)
	}
	if got.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", got.StatusCode)
	}
}

func TestProbe_ExpectedTextBeyondLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, strings.Repeat("x", maxProbeBody))
		fmt.Fprint(w, "MARKER")
	}))
	defer srv.Close()

	p := NewProber("Vigil/test", nil)
	got := p.Probe(context.Background(), probeTarget(srv.URL, "MARKER", 5))

	if got.ErrorMessage != "expected text not found" {
		t.Errorf("ErrorMessage = %q, want expected text not found", got.ErrorMessage)
	}
}
