package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/chrissnell/welltie/internal/align"
	"github.com/chrissnell/welltie/internal/busy"
	"github.com/chrissnell/welltie/internal/engine"
	"github.com/chrissnell/welltie/internal/ingest"
	"github.com/chrissnell/welltie/internal/narrative"
	"github.com/chrissnell/welltie/internal/series"
	"github.com/chrissnell/welltie/internal/storage"
	"github.com/chrissnell/welltie/pkg/responseformat"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds request bodies, overlay payloads included
const maxBodyBytes = 32 << 20

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) eng() *engine.Engine {
	return h.controller.engine
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		h.controller.logger.Errorf("error writing response: %v", err)
	}
}

func (h *Handlers) fail(w http.ResponseWriter, req *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	if werr := h.formatter.WriteError(w, req, status, err); werr != nil {
		h.controller.logger.Errorf("error writing error response: %v", werr)
	}
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, busy.ErrBusy), errors.Is(err, engine.ErrNoReport):
		return http.StatusConflict
	case errors.Is(err, series.ErrSeriesNotFound), errors.Is(err, engine.ErrAnomalyNotFound):
		return http.StatusNotFound
	case errors.Is(err, series.ErrPrimarySeries), errors.Is(err, series.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, narrative.ErrDisabled), errors.Is(err, engine.ErrNoSession), errors.Is(err, engine.ErrNoArchive):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// numberOr reads a JSON number or numeric string. Missing values give def;
// anything else that is not a finite number gives 0.
func numberOr(v any, def float64) float64 {
	switch n := v.(type) {
	case nil:
		return def
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// GetHealth reports the session store health
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	c := h.controller
	resp := HealthResponse{Status: storage.StatusHealthy}

	if c.backend != nil {
		resp.Storage = c.health.Check(req.Context(), c.backendName, c.backend)
		resp.Status = resp.Storage.Status
	}

	if resp.Status != storage.StatusHealthy {
		if err := h.formatter.WriteStatus(w, req, http.StatusServiceUnavailable, resp); err != nil {
			c.logger.Errorf("error writing response: %v", err)
		}
		return
	}
	h.write(w, req, resp)
}

// ListSeries lists every series in display order
func (h *Handlers) ListSeries(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.eng().Store().Series())
}

// AddOverlay ingests an overlay payload in JSON or MessagePack. A payload
// that cannot be decoded still creates an empty overlay.
func (h *Handlers) AddOverlay(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, req, http.StatusBadRequest, fmt.Errorf("reading overlay payload: %w", err))
		return
	}

	format := ingest.FormatFromContentType(req.Header.Get("Content-Type"))
	overlay := ingest.Decode(body, format, h.controller.logger)
	id := h.eng().ImportOverlay(overlay)

	if err := h.formatter.WriteStatus(w, req, http.StatusCreated, OverlayResponse{ID: id, Samples: len(overlay.Values)}); err != nil {
		h.controller.logger.Errorf("error writing response: %v", err)
	}
}

// RemoveOverlay deletes an overlay
func (h *Handlers) RemoveOverlay(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if err := h.eng().Store().RemoveOverlay(id); err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetVisible shows or hides a series
func (h *Handlers) SetVisible(w http.ResponseWriter, req *http.Request) {
	var body VisibleRequest
	if err := decodeBody(req, &body); err != nil {
		h.fail(w, req, http.StatusBadRequest, err)
		return
	}
	id := mux.Vars(req)["id"]
	if err := h.eng().Store().SetVisible(id, body.Visible); err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	s, _ := h.eng().Store().Get(id)
	h.write(w, req, s)
}

// SetColor recolors a series
func (h *Handlers) SetColor(w http.ResponseWriter, req *http.Request) {
	var body ColorRequest
	if err := decodeBody(req, &body); err != nil {
		h.fail(w, req, http.StatusBadRequest, err)
		return
	}
	id := mux.Vars(req)["id"]
	if err := h.eng().Store().SetColor(id, body.Color); err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	s, _ := h.eng().Store().Get(id)
	h.write(w, req, s)
}

// ReorderOverlays moves an overlay within the overlay list
func (h *Handlers) ReorderOverlays(w http.ResponseWriter, req *http.Request) {
	var body ReorderRequest
	if err := decodeBody(req, &body); err != nil {
		h.fail(w, req, http.StatusBadRequest, err)
		return
	}
	if err := h.eng().Store().Reorder(body.From, body.To); err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, h.eng().Store().Series())
}

func (h *Handlers) offsetState() OffsetResponse {
	o := h.eng().Offsets()
	return OffsetResponse{
		Live:    o.Live(),
		Stable:  o.Stable(),
		Pending: o.Pending(),
		Limit:   o.Limit(),
	}
}

// GetOffset returns the live and stable offsets
func (h *Handlers) GetOffset(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.offsetState())
}

// SetOffset sets the live offset. Invalid input is coerced, never rejected.
func (h *Handlers) SetOffset(w http.ResponseWriter, req *http.Request) {
	var body OffsetRequest
	if err := decodeBody(req, &body); err != nil {
		h.controller.logger.Debugf("unreadable offset request treated as 0: %v", err)
		body = OffsetRequest{}
	}
	h.eng().SetOffset(align.Clamp(numberOr(body.Offset, 0), h.eng().Offsets().Limit()))
	h.write(w, req, h.offsetState())
}

// AutoAlign runs the offset search
func (h *Handlers) AutoAlign(w http.ResponseWriter, req *http.Request) {
	result, err := h.eng().AutoAlign(req.Context())
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, result)
}

// GetCombined returns the combined dataset
func (h *Handlers) GetCombined(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, CombinedResponse{
		Offset: h.eng().Offsets().Stable(),
		Rows:   h.eng().Combined(),
	})
}

// GetScores returns the fit-quality scores
func (h *Handlers) GetScores(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, h.eng().Scores())
}

// Scan runs a threshold scan
func (h *Handlers) Scan(w http.ResponseWriter, req *http.Request) {
	var body ScanRequest
	if err := decodeBody(req, &body); err != nil {
		h.fail(w, req, http.StatusBadRequest, err)
		return
	}

	defaults := h.controller.scanConfig
	sensitive := defaults.Sensitive
	if body.Sensitive != nil {
		sensitive = *body.Sensitive
	}

	found, err := h.eng().Scan(numberOr(body.Threshold, defaults.Threshold), sensitive)
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, AnomaliesResponse{Anomalies: found})
}

// VarianceAudit runs the local dispersion audit
func (h *Handlers) VarianceAudit(w http.ResponseWriter, req *http.Request) {
	var body AuditRequest
	if err := decodeBody(req, &body); err != nil {
		h.fail(w, req, http.StatusBadRequest, err)
		return
	}
	report, err := h.eng().VarianceAudit(body.Center, body.Window)
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, report)
}

// ListAnomalies returns the current anomaly snapshot
func (h *Handlers) ListAnomalies(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, AnomaliesResponse{Anomalies: h.eng().Anomalies()})
}

// Report generates the narrative report of an anomaly
func (h *Handlers) Report(w http.ResponseWriter, req *http.Request) {
	report, err := h.eng().Report(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		h.fail(w, req, status, err)
		return
	}
	h.write(w, req, report)
}

// ArchiveReport archives the generated report of an anomaly
func (h *Handlers) ArchiveReport(w http.ResponseWriter, req *http.Request) {
	rec, err := h.eng().ArchiveReport(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, rec)
}

// ListReports lists archived reports
func (h *Handlers) ListReports(w http.ResponseWriter, req *http.Request) {
	reports, err := h.eng().ArchivedReports(req.Context())
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, ReportsResponse{Reports: reports})
}

// SaveSession persists the stable offset
func (h *Handlers) SaveSession(w http.ResponseWriter, req *http.Request) {
	at, err := h.eng().Save(req.Context())
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	h.write(w, req, SessionResponse{Offset: h.eng().Offsets().Stable(), Found: true, SavedAt: at})
}

// RestoreSession loads the saved offset
func (h *Handlers) RestoreSession(w http.ResponseWriter, req *http.Request) {
	offset, found, err := h.eng().Restore(req.Context())
	if err != nil {
		h.fail(w, req, statusFor(err), err)
		return
	}
	resp := SessionResponse{Offset: offset, Found: found}
	if !found {
		resp.Message = "no prior session"
	}
	h.write(w, req, resp)
}
