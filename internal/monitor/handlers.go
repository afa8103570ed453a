package monitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/HerbHall/vigil/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/status", Handler: m.handleStatus},
		{Method: "GET", Path: "/overdue", Handler: m.handleOverdue},

		{Method: "GET", Path: "/poll-targets", Handler: m.handleListPollTargets},
		{Method: "POST", Path: "/poll-targets", Handler: m.handleCreatePollTarget},
		{Method: "GET", Path: "/poll-targets/{id}", Handler: m.handleGetPollTarget},
		{Method: "PUT", Path: "/poll-targets/{id}", Handler: m.handleUpdatePollTarget},
		{Method: "DELETE", Path: "/poll-targets/{id}", Handler: m.handleDeletePollTarget},
		{Method: "POST", Path: "/poll-targets/{id}/check", Handler: m.handleRunCheck},
		{Method: "GET", Path: "/poll-targets/{id}/results", Handler: m.handleListResults},
		{Method: "GET", Path: "/poll-targets/{id}/alert-configs", Handler: m.handleListAlertConfigs},
		{Method: "POST", Path: "/poll-targets/{id}/alert-configs", Handler: m.handleCreateAlertConfig(KindPoll)},

		{Method: "GET", Path: "/push-targets", Handler: m.handleListPushTargets},
		{Method: "POST", Path: "/push-targets", Handler: m.handleCreatePushTarget},
		{Method: "GET", Path: "/push-targets/{id}", Handler: m.handleGetPushTarget},
		{Method: "PUT", Path: "/push-targets/{id}", Handler: m.handleUpdatePushTarget},
		{Method: "DELETE", Path: "/push-targets/{id}", Handler: m.handleDeletePushTarget},
		{Method: "GET", Path: "/push-targets/{id}/status", Handler: m.handlePushStatus},
		{Method: "GET", Path: "/push-targets/{id}/alert-configs", Handler: m.handleListAlertConfigs},
		{Method: "POST", Path: "/push-targets/{id}/alert-configs", Handler: m.handleCreateAlertConfig(KindPush)},

		{Method: "PUT", Path: "/alert-configs/{id}", Handler: m.handleUpdateAlertConfig},
		{Method: "DELETE", Path: "/alert-configs/{id}", Handler: m.handleDeleteAlertConfig},

		{Method: "POST", Path: "/heartbeat/{token}", Handler: m.handleHeartbeat},
		{Method: "GET", Path: "/heartbeat/{token}", Handler: m.handleHeartbeat},
	}
}

// StatusResponse is the body of GET /monitor/status.
type StatusResponse struct {
	Counts    SystemCounts `json:"counts"`
	Scheduler Snapshot     `json:"scheduler"`
}

// handleStatus returns system counts and the scheduler snapshot.
//
//	@Summary		Monitor status
//	@Description	Returns health counts across all targets and the scheduler state.
//	@Tags			monitor
//	@Produce		json
//	@Success		200 {object} StatusResponse
//	@Failure		500 {object} map[string]any
//	@Router			/monitor/status [get]
func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := m.GetSystemCounts(r.Context())
	if err != nil {
		m.writeServiceError(w, err, "failed to compute status")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Counts: counts, Scheduler: m.Snapshot()})
}

// handleOverdue returns the push targets that are overdue now.
//
//	@Summary		Overdue targets
//	@Tags			monitor
//	@Produce		json
//	@Success		200 {array} PushTarget
//	@Router			/monitor/overdue [get]
func (m *Module) handleOverdue(w http.ResponseWriter, r *http.Request) {
	targets, err := m.GetOverdueTargets(r.Context())
	if err != nil {
		m.writeServiceError(w, err, "failed to list overdue targets")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

// -- poll targets --

func (m *Module) handleListPollTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := m.ListPollTargets(r.Context())
	if err != nil {
		m.writeServiceError(w, err, "failed to list poll targets")
		return
	}
	if targets == nil {
		targets = []PollTarget{}
	}
	writeJSON(w, http.StatusOK, targets)
}

// handleCreatePollTarget registers a poll target.
//
//	@Summary		Create poll target
//	@Tags			monitor
//	@Accept			json
//	@Produce		json
//	@Param			target body PollTargetParams true "Poll target"
//	@Success		201 {object} PollTarget
//	@Failure		400 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/monitor/poll-targets [post]
func (m *Module) handleCreatePollTarget(w http.ResponseWriter, r *http.Request) {
	var p PollTargetParams
	if !decodeBody(w, r, &p) {
		return
	}
	t, err := m.CreatePollTarget(r.Context(), p)
	if err != nil {
		m.writeServiceError(w, err, "failed to create poll target")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (m *Module) handleGetPollTarget(w http.ResponseWriter, r *http.Request) {
	t, err := m.GetPollTarget(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeServiceError(w, err, "failed to get poll target")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (m *Module) handleUpdatePollTarget(w http.ResponseWriter, r *http.Request) {
	var p PollTargetParams
	if !decodeBody(w, r, &p) {
		return
	}
	t, err := m.UpdatePollTarget(r.Context(), r.PathValue("id"), p)
	if err != nil {
		m.writeServiceError(w, err, "failed to update poll target")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (m *Module) handleDeletePollTarget(w http.ResponseWriter, r *http.Request) {
	if err := m.DeletePollTarget(r.Context(), r.PathValue("id")); err != nil {
		m.writeServiceError(w, err, "failed to delete poll target")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunCheck probes a poll target immediately.
//
//	@Summary		Run check
//	@Description	Probes the target now, records the result and alerts on a transition.
//	@Tags			monitor
//	@Produce		json
//	@Param			id path string true "Poll target ID"
//	@Success		200 {object} CheckResult
//	@Failure		404 {object} map[string]any
//	@Router			/monitor/poll-targets/{id}/check [post]
func (m *Module) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	result, err := m.RunPollCheck(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeServiceError(w, err, "check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListResults returns recent results for a poll target.
//
//	@Summary		Check results
//	@Tags			monitor
//	@Produce		json
//	@Param			id path string true "Poll target ID"
//	@Param			limit query int false "Maximum results" default(100)
//	@Success		200 {array} CheckResult
//	@Router			/monitor/poll-targets/{id}/results [get]
func (m *Module) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := m.ListResults(r.Context(), r.PathValue("id"), parseLimit(r, 100))
	if err != nil {
		m.writeServiceError(w, err, "failed to list results")
		return
	}
	if results == nil {
		results = []CheckResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// -- push targets --

func (m *Module) handleListPushTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := m.ListPushTargets(r.Context())
	if err != nil {
		m.writeServiceError(w, err, "failed to list push targets")
		return
	}
	if targets == nil {
		targets = []PushTarget{}
	}
	writeJSON(w, http.StatusOK, targets)
}

// handleCreatePushTarget registers a push target. The response carries the
// token that heartbeats must present.
//
//	@Summary		Create push target
//	@Tags			monitor
//	@Accept			json
//	@Produce		json
//	@Param			target body PushTargetParams true "Push target"
//	@Success		201 {object} PushTarget
//	@Failure		400 {object} map[string]any
//	@Failure		409 {object} map[string]any
//	@Router			/monitor/push-targets [post]
func (m *Module) handleCreatePushTarget(w http.ResponseWriter, r *http.Request) {
	var p PushTargetParams
	if !decodeBody(w, r, &p) {
		return
	}
	t, err := m.CreatePushTarget(r.Context(), p)
	if err != nil {
		m.writeServiceError(w, err, "failed to create push target")
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (m *Module) handleGetPushTarget(w http.ResponseWriter, r *http.Request) {
	t, err := m.GetPushTarget(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeServiceError(w, err, "failed to get push target")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (m *Module) handleUpdatePushTarget(w http.ResponseWriter, r *http.Request) {
	var p PushTargetParams
	if !decodeBody(w, r, &p) {
		return
	}
	t, err := m.UpdatePushTarget(r.Context(), r.PathValue("id"), p)
	if err != nil {
		m.writeServiceError(w, err, "failed to update push target")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (m *Module) handleDeletePushTarget(w http.ResponseWriter, r *http.Request) {
	if err := m.DeletePushTarget(r.Context(), r.PathValue("id")); err != nil {
		m.writeServiceError(w, err, "failed to delete push target")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Module) handlePushStatus(w http.ResponseWriter, r *http.Request) {
	st, err := m.GetPushStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeServiceError(w, err, "failed to get push status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// -- alert configs --

func (m *Module) handleListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := m.ListAlertConfigs(r.Context(), r.PathValue("id"))
	if err != nil {
		m.writeServiceError(w, err, "failed to list alert configs")
		return
	}
	if configs == nil {
		configs = []AlertConfig{}
	}
	writeJSON(w, http.StatusOK, configs)
}

func (m *Module) handleCreateAlertConfig(kind TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p AlertConfigParams
		if !decodeBody(w, r, &p) {
			return
		}
		c, err := m.CreateAlertConfig(r.Context(), kind, r.PathValue("id"), p)
		if err != nil {
			m.writeServiceError(w, err, "failed to create alert config")
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func (m *Module) handleUpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	var p AlertConfigParams
	if !decodeBody(w, r, &p) {
		return
	}
	c, err := m.UpdateAlertConfig(r.Context(), r.PathValue("id"), p)
	if err != nil {
		m.writeServiceError(w, err, "failed to update alert config")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (m *Module) handleDeleteAlertConfig(w http.ResponseWriter, r *http.Request) {
	if err := m.DeleteAlertConfig(r.Context(), r.PathValue("id")); err != nil {
		m.writeServiceError(w, err, "failed to delete alert config")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- heartbeat --

// HeartbeatResponse acknowledges an accepted heartbeat.
type HeartbeatResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// handleHeartbeat records a heartbeat for the push target owning the token.
// GET is accepted so plain cron jobs can use curl without flags.
//
//	@Summary		Heartbeat
//	@Tags			monitor
//	@Produce		json
//	@Param			token path string true "Push token"
//	@Success		200 {object} HeartbeatResponse
//	@Failure		400 {object} map[string]any
//	@Failure		404 {object} map[string]any
//	@Router			/monitor/heartbeat/{token} [post]
func (m *Module) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	at, err := m.ReceiveHeartbeat(r.Context(), r.PathValue("token"), m.clock())
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "invalid token")
		return
	case errors.Is(err, ErrInactive):
		writeError(w, http.StatusBadRequest, "target is inactive")
		return
	case err != nil:
		m.writeServiceError(w, err, "failed to record heartbeat")
		return
	}
	writeJSON(w, http.StatusOK, HeartbeatResponse{
		Status:    "ok",
		Timestamp: at.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// -- helpers --

// writeServiceError maps a core error to its HTTP status. Unclassified
// errors are logged and reported with the generic fallback message.
func (m *Module) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInactive):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "monitor store not available")
	default:
		m.logger.Warn(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   problemType(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// problemType returns the problem URI for status, e.g.
// https://vigil.dev/problems/not-found.
func problemType(status int) string {
	slug := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-"))
	return "https://vigil.dev/problems/" + slug
}

func parseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}
