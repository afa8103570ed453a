package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pollSubject(url string) Subject {
	return Subject{ID: "t-1", Name: "billing-api", TargetKind: "poll", URL: url}
}

func failingContext() Context {
	return Context{
		Status:       "unhealthy",
		ErrorMessage: "HTTP 503: Service Unavailable",
		ResponseTime: 120 * time.Millisecond,
		StatusCode:   503,
		CheckedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func captureServer(t *testing.T, status int, body *[]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackChannel_SendFailure(t *testing.T) {
	var body []byte
	srv := captureServer(t, http.StatusOK, &body)

	ch, err := Build(KindSlack, json.RawMessage(`{"webhook_url":"`+srv.URL+`/hook","channel":"#ops"}`), DefaultDefaults())
	require.NoError(t, err)

	require.NoError(t, ch.SendFailure(context.Background(), pollSubject("https://billing.example"), failingContext()))

	var got slackPayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Vigil", got.Username)
	assert.Equal(t, "#ops", got.Channel)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Contains(t, got.Attachments[0].Text, "HEALTHCHECK FAILURE")
	assert.Contains(t, got.Attachments[0].Text, "HTTP 503")
}

func TestSlackChannel_SendRecoveryColor(t *testing.T) {
	var body []byte
	srv := captureServer(t, http.StatusOK, &body)

	ch, err := Build(KindSlack, json.RawMessage(`{"webhook_url":"`+srv.URL+`"}`), DefaultDefaults())
	require.NoError(t, err)
	require.NoError(t, ch.SendRecovery(context.Background(), pollSubject("https://billing.example"), Context{Status: "healthy"}))

	var got slackPayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "good", got.Attachments[0].Color)
}

func TestDiscordChannel_Colors(t *testing.T) {
	var body []byte
	srv := captureServer(t, http.StatusNoContent, &body)

	ch, err := Build(KindDiscord, json.RawMessage(`{"webhook_url":"`+srv.URL+`","username":"HeartbeatBot"}`), DefaultDefaults())
	require.NoError(t, err)

	push := Subject{ID: "p-1", Name: "nightly-backup", TargetKind: "push"}

	require.NoError(t, ch.SendFailure(context.Background(), push, Context{Status: "unhealthy"}))
	var got discordPayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "HeartbeatBot", got.Username)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, discordColorFailure, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Description, "MISSED HEARTBEAT")
	assert.Contains(t, got.Embeds[0].Description, "Last Heartbeat: Never")

	require.NoError(t, ch.SendRecovery(context.Background(), push, Context{Status: "healthy"}))
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, discordColorRecovery, got.Embeds[0].Color)
}

func TestWebhook_Non2xxIsSendError(t *testing.T) {
	var body []byte
	srv := captureServer(t, http.StatusInternalServerError, &body)

	ch, err := Build(KindSlack, json.RawMessage(`{"webhook_url":"`+srv.URL+`/services/SECRET"}`), DefaultDefaults())
	require.NoError(t, err)

	err = ch.SendFailure(context.Background(), pollSubject(""), failingContext())
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr), "want *SendError, got %v", err)
	assert.Equal(t, KindSlack, sendErr.Kind)
	assert.Contains(t, err.Error(), "status 500")
	assert.False(t, strings.Contains(err.Error(), "SECRET"), "webhook path leaked into error: %v", err)
}

func TestWebhook_TransportErrorRedactsPath(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	hook := srv.URL + "/services/T000/B000/SECRETTOKEN"
	srv.Close()

	for _, kind := range []Kind{KindSlack, KindDiscord} {
		t.Run(string(kind), func(t *testing.T) {
			ch, err := Build(kind, json.RawMessage(`{"webhook_url":"`+hook+`"}`), DefaultDefaults())
			require.NoError(t, err)

			err = ch.SendFailure(context.Background(), pollSubject(""), failingContext())
			var sendErr *SendError
			require.True(t, errors.As(err, &sendErr), "want *SendError, got %v", err)
			assert.NotContains(t, err.Error(), "SECRETTOKEN")
			assert.NotContains(t, err.Error(), "/services/")
			assert.Contains(t, err.Error(), strings.TrimPrefix(srv.URL, "http://"))
		})
	}
}
