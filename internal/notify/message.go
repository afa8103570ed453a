package notify

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// FormatFailure renders the multi-line failure text shared by the email and
// chat channels.
func FormatFailure(s Subject, nc Context) string {
	var b strings.Builder
	if s.IsPush() {
		b.WriteString("🚨 MISSED HEARTBEAT\n\n")
	} else {
		b.WriteString("🚨 HEALTHCHECK FAILURE\n\n")
	}
	writeCommon(&b, s, nc)
	fmt.Fprintf(&b, "Error: %s\n", orDefault(nc.ErrorMessage, "Unknown error"))
	writeTiming(&b, s, nc)
	return strings.TrimSpace(b.String())
}

// FormatRecovery renders the multi-line recovery text.
func FormatRecovery(s Subject, nc Context) string {
	var b strings.Builder
	if s.IsPush() {
		b.WriteString("✅ HEARTBEAT RESUMED\n\n")
	} else {
		b.WriteString("✅ HEALTHCHECK RECOVERED\n\n")
	}
	writeCommon(&b, s, nc)
	writeTiming(&b, s, nc)
	return strings.TrimSpace(b.String())
}

func writeCommon(b *strings.Builder, s Subject, nc Context) {
	fmt.Fprintf(b, "Service: %s\n", s.Name)
	if s.URL != "" {
		fmt.Fprintf(b, "URL: %s\n", s.URL)
	}
	fmt.Fprintf(b, "Status: %s\n", strings.ToUpper(orDefault(nc.Status, "unknown")))
}

func writeTiming(b *strings.Builder, s Subject, nc Context) {
	if s.IsPush() {
		fmt.Fprintf(b, "Last Heartbeat: %s\n", formatLastSeen(nc.LastHeartbeat))
		if nc.ExpectedInterval > 0 {
			fmt.Fprintf(b, "Expected Every: %s (grace %s)\n", nc.ExpectedInterval, nc.GracePeriod)
		}
	} else {
		if nc.ResponseTime > 0 {
			fmt.Fprintf(b, "Response Time: %.2fs\n", nc.ResponseTime.Seconds())
		} else {
			b.WriteString("Response Time: N/A\n")
		}
		if nc.StatusCode > 0 {
			fmt.Fprintf(b, "Status Code: %d\n", nc.StatusCode)
		} else {
			b.WriteString("Status Code: N/A\n")
		}
	}
	fmt.Fprintf(b, "Time: %s\n", nc.CheckedAt.UTC().Format(timeLayout))
}

// shortFailure is the single-line form used where space is scarce (SMS).
func shortFailure(s Subject, nc Context) string {
	if s.IsPush() {
		return fmt.Sprintf("ALERT: %s missed heartbeat\nLast seen: %s", s.Name, formatLastSeen(nc.LastHeartbeat))
	}
	return fmt.Sprintf("ALERT: %s is down\n%s", s.Name, orDefault(nc.ErrorMessage, "Unknown error"))
}

func shortRecovery(s Subject, _ Context) string {
	if s.IsPush() {
		return fmt.Sprintf("RECOVERY: %s heartbeat resumed\nApplication is sending heartbeats again.", s.Name)
	}
	return fmt.Sprintf("RECOVERY: %s is healthy again", s.Name)
}

func failureSubject(s Subject) string {
	if s.IsPush() {
		return fmt.Sprintf("[ALERT] %s missed heartbeat", s.Name)
	}
	return fmt.Sprintf("[ALERT] %s is down", s.Name)
}

func recoverySubject(s Subject) string {
	if s.IsPush() {
		return fmt.Sprintf("[RECOVERY] %s heartbeat resumed", s.Name)
	}
	return fmt.Sprintf("[RECOVERY] %s is back up", s.Name)
}

func formatLastSeen(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return t.UTC().Format(timeLayout)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
