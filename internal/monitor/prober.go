package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxProbeBody bounds how much of a response is scanned for expected text.
const maxProbeBody = 1 << 20

// Prober runs one HTTP check against a poll target. Every network or
// protocol failure becomes an unhealthy CheckResult; Probe never errors.
type Prober struct {
	client    *http.Client
	userAgent string
	clock     Clock
}

// NewProber creates a prober that identifies itself with userAgent.
func NewProber(userAgent string, clock Clock) *Prober {
	if clock == nil {
		clock = time.Now
	}
	return &Prober{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
		userAgent: userAgent,
		clock:     clock,
	}
}

// Probe issues a GET to t.URL bounded by t.Timeout and classifies the outcome:
// transport failure, then non-2xx status, then missing expected text.
func (p *Prober) Probe(ctx context.Context, t PollTarget) CheckResult {
	result := CheckResult{TargetID: t.ID, Status: StatusUnhealthy}

	timeout := t.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, http.NoBody)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("connection error: invalid URL: %v", err)
		result.CheckedAt = p.clock().UTC()
		return result
	}
	req.Header.Set("User-Agent", p.userAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start)
	result.ResponseTimeMs = float64(elapsed) / float64(time.Millisecond)
	result.CheckedAt = p.clock().UTC()

	if err != nil {
		if isTimeout(ctx, err) {
			result.ErrorMessage = fmt.Sprintf("timeout after %ds", int(timeout/time.Second))
		} else {
			result.ErrorMessage = "connection error: " + unwrapURLError(err).Error()
		}
		return result
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.ErrorMessage = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBody)) //nolint:errcheck // drain only
		return result
	}

	if t.ExpectedText != "" {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
		if err != nil {
			if isTimeout(ctx, err) {
				result.ErrorMessage = fmt.Sprintf("timeout after %ds", int(timeout/time.Second))
			} else {
				result.ErrorMessage = "connection error: " + err.Error()
			}
			return result
		}
		if !strings.Contains(strings.ToLower(string(body)), strings.ToLower(t.ExpectedText)) {
			result.ErrorMessage = "expected text not found"
			return result
		}
	}

	result.Status = StatusHealthy
	return result
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// unwrapURLError drops the "Get <url>:" prefix net/http adds.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
