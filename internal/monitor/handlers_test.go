package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/vigil/pkg/plugin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// serve routes one request through a mux built from Routes, the way the
// HTTP server mounts them.
func serve(t *testing.T, m *Module, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	for _, r := range m.Routes() {
		mux.HandleFunc(r.Method+" "+r.Path, r.Handler)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func problemDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	var p map[string]any
	decodeJSON(t, w, &p)
	detail, _ := p["detail"].(string)
	return detail
}

// -- poll targets --

func TestHandleListPollTargets_Empty(t *testing.T) {
	env := newTestModule(t)
	w := serve(t, env.m, http.MethodGet, "/poll-targets", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestHandleCreatePollTarget(t *testing.T) {
	env := newTestModule(t)
	w := serve(t, env.m, http.MethodPost, "/poll-targets",
		`{"name":"billing-api","url":"https://billing.example.com/health","expected_text":"OK","check_interval":60}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var pt PollTarget
	decodeJSON(t, w, &pt)
	if pt.ID == "" || pt.Name != "billing-api" || pt.CheckIntervalSeconds != 60 || pt.TimeoutSeconds != 30 {
		t.Errorf("created target = %+v", pt)
	}

	w = serve(t, env.m, http.MethodGet, "/poll-targets/"+pt.ID, "")
	if w.Code != http.StatusOK {
		t.Errorf("get status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHandleCreatePollTarget_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDetail string
	}{
		{"malformed", `{`, http.StatusBadRequest, "invalid request body"},
		{"unknown field", `{"name":"a","url":"http://a.example","bogus":1}`, http.StatusBadRequest, "invalid request body"},
		{"bad url", `{"name":"a","url":"not a url"}`, http.StatusBadRequest, "url:"},
		{"empty name", `{"name":"","url":"http://a.example"}`, http.StatusBadRequest, "name:"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestModule(t)
			w := serve(t, env.m, http.MethodPost, "/poll-targets", tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if detail := problemDetail(t, w); !strings.Contains(detail, tc.wantDetail) {
				t.Errorf("detail = %q, want it to contain %q", detail, tc.wantDetail)
			}
		})
	}
}

func TestHandleCreatePollTarget_Duplicate(t *testing.T) {
	env := newTestModule(t)
	body := `{"name":"api","url":"http://a.example"}`
	if w := serve(t, env.m, http.MethodPost, "/poll-targets", body); w.Code != http.StatusCreated {
		t.Fatalf("first create status = %d", w.Code)
	}
	w := serve(t, env.m, http.MethodPost, "/poll-targets", body)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestHandleGetPollTarget_NotFound(t *testing.T) {
	env := newTestModule(t)
	w := serve(t, env.m, http.MethodGet, "/poll-targets/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleUpdateAndDeletePollTarget(t *testing.T) {
	env := newTestModule(t)
	pt, err := env.m.CreatePollTarget(context.Background(), PollTargetParams{Name: "api", URL: "http://a.example"})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	w := serve(t, env.m, http.MethodPut, "/poll-targets/"+pt.ID, `{"name":"api","url":"http://b.example","timeout":10}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	var got PollTarget
	decodeJSON(t, w, &got)
	if got.URL != "http://b.example" || got.TimeoutSeconds != 10 {
		t.Errorf("updated = %+v", got)
	}

	w = serve(t, env.m, http.MethodDelete, "/poll-targets/"+pt.ID, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}
	w = serve(t, env.m, http.MethodDelete, "/poll-targets/"+pt.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleRunCheck_AndResults(t *testing.T) {
	env := newTestModule(t)
	srv := newSwitchServer(t)
	pt, err := env.m.CreatePollTarget(context.Background(), PollTargetParams{Name: "api", URL: srv.URL, ExpectedText: "OK"})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	w := serve(t, env.m, http.MethodPost, "/poll-targets/"+pt.ID+"/check", "")
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d: %s", w.Code, w.Body.String())
	}
	var res CheckResult
	decodeJSON(t, w, &res)
	if res.Status != StatusHealthy || res.StatusCode != http.StatusOK {
		t.Errorf("result = %+v", res)
	}

	w = serve(t, env.m, http.MethodGet, "/poll-targets/"+pt.ID+"/results?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("results status = %d", w.Code)
	}
	var results []CheckResult
	decodeJSON(t, w, &results)
	if len(results) != 1 {
		t.Errorf("len(results) = %d, want 1", len(results))
	}

	w = serve(t, env.m, http.MethodPost, "/poll-targets/ghost/check", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown check status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// -- push targets and heartbeats --

func TestHandleHeartbeat(t *testing.T) {
	env := newTestModule(t)
	w := serve(t, env.m, http.MethodPost, "/push-targets", `{"name":"nightly-backup","expected_interval":3600,"grace_period":300}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var pt PushTarget
	decodeJSON(t, w, &pt)
	if pt.Token == "" {
		t.Fatal("token not returned on create")
	}

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		w = serve(t, env.m, method, "/heartbeat/"+pt.Token, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s heartbeat status = %d: %s", method, w.Code, w.Body.String())
		}
		var resp HeartbeatResponse
		decodeJSON(t, w, &resp)
		if resp.Status != "ok" {
			t.Errorf("status field = %q, want ok", resp.Status)
		}
		if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
			t.Errorf("timestamp %q not RFC3339: %v", resp.Timestamp, err)
		}
	}

	w = serve(t, env.m, http.MethodGet, "/push-targets/"+pt.ID+"/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("push status = %d", w.Code)
	}
	var st PushStatus
	decodeJSON(t, w, &st)
	if st.TotalHeartbeats != 2 {
		t.Errorf("TotalHeartbeats = %d, want 2", st.TotalHeartbeats)
	}
}

func TestHandleHeartbeat_Errors(t *testing.T) {
	env := newTestModule(t)
	off, err := env.m.CreatePushTarget(context.Background(), PushTargetParams{Name: "off", ExpectedInterval: 60, IsActive: boolPtr(false)})
	if err != nil {
		t.Fatalf("CreatePushTarget: %v", err)
	}

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"unknown token", uuid.NewString(), http.StatusNotFound},
		{"garbage token", "abc", http.StatusNotFound},
		{"inactive target", off.Token, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(t, env.m, http.MethodPost, "/heartbeat/"+tc.token, "")
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestHandleOverdue(t *testing.T) {
	env := newTestModule(t)
	if _, err := env.m.CreatePushTarget(context.Background(), PushTargetParams{Name: "cron", ExpectedInterval: 60}); err != nil {
		t.Fatalf("CreatePushTarget: %v", err)
	}

	w := serve(t, env.m, http.MethodGet, "/overdue", "")
	var targets []PushTarget
	decodeJSON(t, w, &targets)
	if len(targets) != 0 {
		t.Errorf("len(overdue) = %d before deadline, want 0", len(targets))
	}

	env.clock.Advance(time.Hour)
	w = serve(t, env.m, http.MethodGet, "/overdue", "")
	decodeJSON(t, w, &targets)
	if len(targets) != 1 {
		t.Errorf("len(overdue) = %d after deadline, want 1", len(targets))
	}
}

// -- alert configs --

func TestHandleAlertConfigs(t *testing.T) {
	env := newTestModule(t)
	pt, err := env.m.CreatePollTarget(context.Background(), PollTargetParams{Name: "api", URL: "http://a.example"})
	if err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	w := serve(t, env.m, http.MethodPost, "/poll-targets/"+pt.ID+"/alert-configs",
		`{"channel_kind":"slack","channel_config":{"webhook_url":"https://hooks.slack.example/services/T/B/X"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var c AlertConfig
	decodeJSON(t, w, &c)
	if c.TargetKind != KindPoll || c.ChannelKind != "slack" {
		t.Errorf("config = %+v", c)
	}

	w = serve(t, env.m, http.MethodPost, "/poll-targets/"+pt.ID+"/alert-configs",
		`{"channel_kind":"slack","channel_config":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid config status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if detail := problemDetail(t, w); !strings.Contains(detail, "webhook_url") {
		t.Errorf("detail = %q, want mention of webhook_url", detail)
	}

	w = serve(t, env.m, http.MethodGet, "/poll-targets/"+pt.ID+"/alert-configs", "")
	var configs []AlertConfig
	decodeJSON(t, w, &configs)
	if len(configs) != 1 {
		t.Fatalf("len(configs) = %d, want 1", len(configs))
	}

	w = serve(t, env.m, http.MethodPut, "/alert-configs/"+c.ID, `{"is_active":false}`)
	if w.Code != http.StatusOK {
		t.Errorf("update status = %d: %s", w.Code, w.Body.String())
	}
	w = serve(t, env.m, http.MethodDelete, "/alert-configs/"+c.ID, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

// -- status --

func TestHandleStatus(t *testing.T) {
	env := newTestModule(t)
	if _, err := env.m.CreatePollTarget(context.Background(), PollTargetParams{Name: "api", URL: "http://a.example"}); err != nil {
		t.Fatalf("CreatePollTarget: %v", err)
	}

	w := serve(t, env.m, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	decodeJSON(t, w, &resp)
	if resp.Counts.Total != 1 || resp.Counts.Unknown != 1 {
		t.Errorf("counts = %+v", resp.Counts)
	}
	if resp.Scheduler.SweepInterval != "30s" {
		t.Errorf("SweepInterval = %q, want 30s", resp.Scheduler.SweepInterval)
	}
}

func TestHandlers_NilStore(t *testing.T) {
	m := New()
	if err := m.Init(context.Background(), plugin.Dependencies{Logger: zap.NewNop()}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, path := range []string{"/poll-targets", "/push-targets", "/status", "/overdue"} {
		w := serve(t, m, http.MethodGet, path, "")
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=5", 5},
		{"?limit=0", 100},
		{"?limit=-3", 100},
		{"?limit=1000", 1000},
		{"?limit=1001", 100},
		{"?limit=abc", 100},
	}
	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x"+tc.query, http.NoBody)
		if got := parseLimit(r, 100); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.query, got, tc.want)
		}
	}
}
