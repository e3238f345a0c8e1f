package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/alerts"
	"github.com/sprintpulse/sprintpulse/internal/store"
)

// AlertSource supplies the alerts listed by GET /api/v1/alerts.
// *alerts.Engine implements it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads board reports from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the given report store and alert source and
// registers all routes. src may be nil, in which case no alerts are listed.
func New(st *store.Store, src AlertSource) http.Handler {
	h := &Handler{store: st, alerts: src, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/reports", h.listReports)
	h.mux.HandleFunc("/api/v1/reports/", h.getReport) // subtree, extracts {board}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: last run outcome and live counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{
		State:      "unknown",
		BoardCount: len(h.store.List()),
		AlertCount: len(h.activeAlerts()),
		LastRun:    h.store.LastRun(),
	}
	if resp.LastRun != nil {
		resp.State = "ok"
		if resp.LastRun.Error != "" {
			resp.State = "failed"
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listReports returns GET /api/v1/reports: all live board reports.
func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, toReportResponses(h.store.List()))
}

// getReport returns GET /api/v1/reports/{board}: a single live board report.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	board := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if board == "" {
		h.listReports(w, r)
		return
	}

	e, ok := h.store.Get(board)
	if !ok || !h.store.Fresh(e) {
		jsonErr(w, http.StatusNotFound, "report not found")
		return
	}
	jsonResp(w, http.StatusOK, toReportResponse(e))
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

// snapshot returns GET /api/v1/snapshot: every live report plus generated_at.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	out := h.alerts.Active()
	if out == nil {
		out = []*alerts.Alert{}
	}
	return out
}

// BuildSnapshot assembles the snapshot payload from the live store entries.
// The websocket hub broadcasts the same payload.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	return SnapshotResponse{
		Reports:     toReportResponses(st.List()),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func toReportResponses(entries []*store.Entry) []ReportResponse {
	out := make([]ReportResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toReportResponse(e))
	}
	return out
}

// toReportResponse maps a store.Entry to its JSON representation.
func toReportResponse(e *store.Entry) ReportResponse {
	rep := e.Report
	vels := make([]VelocityResponse, 0, len(rep.Velocities))
	for _, v := range rep.Velocities {
		vr := VelocityResponse{
			SprintKey:  v.SprintKey,
			Committed:  v.Velocity.Estimated.Value,
			Delivered:  v.Velocity.Completed.Value,
			Diff:       v.Velocity.Diff.Value,
			Attainment: v.Velocity.Attainment.Value,
		}
		if s := v.Sprint; s != nil {
			vr.SprintName = s.Name
			vr.State = s.State
			vr.StartDate = s.StartDate.UTC().Format(time.RFC3339)
			vr.EndDate = s.EndDate.UTC().Format(time.RFC3339)
		}
		vels = append(vels, vr)
	}

	active := make([]ActiveResponse, 0, len(rep.Active))
	for _, a := range rep.Active {
		active = append(active, ActiveResponse{
			SprintID:   a.Sprint.ID,
			SprintName: a.Sprint.Name,
			StartDate:  a.Sprint.StartDate.UTC().Format(time.RFC3339),
			Points:     a.Points,
		})
	}

	return ReportResponse{
		Board:             rep.Board.Name,
		BoardID:           rep.Board.ID,
		DisplayName:       rep.Board.Title(),
		RunID:             rep.RunID,
		GeneratedAt:       rep.GeneratedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         e.UpdatedAt.UTC().Format(time.RFC3339),
		AverageAttainment: rep.Metrics.AverageAttainment,
		ActivePoints:      rep.ActivePoints(),
		OrphanEntries:     rep.Orphans,
		Velocities:        vels,
		Active:            active,
	}
}
