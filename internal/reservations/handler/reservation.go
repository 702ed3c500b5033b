package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"slotbook/internal/identity"
	"slotbook/internal/liveview"
	"slotbook/internal/reservations/service"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

const (
	dayViewEvent      = "dayview"
	streamHeartbeat   = 15 * time.Second
	streamPathSuffix  = "/stream"
	invalidDayMessage = "Invalid date, expected YYYY-MM-DD"
)

// LiveViewFactory returns a fresh synchronizer for one stream connection.
type LiveViewFactory func() *liveview.Synchronizer

type ReservationHandler struct {
	service   service.LifecycleManager
	gate      identity.Gate
	liveViews LiveViewFactory
	log       *logger.Logger
	heartbeat time.Duration
}

func NewReservationHandler(service service.LifecycleManager, gate identity.Gate, liveViews LiveViewFactory, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service:   service,
		gate:      gate,
		liveViews: liveViews,
		log:       log,
		heartbeat: streamHeartbeat,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	created, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, created); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservation, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reservation); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, r, "ListMine", err)
		return
	}

	reservations, total, err := h.service.ListMine(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, "ListMine", err)
		return
	}

	if err := httputil.WritePaginated(w, reservations, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListMine", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservationHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	updated, err := h.service.Approve(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Approve", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	updated, err := h.service.Reject(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Reject", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Reject", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservationHandler) GetDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := h.service.Hours().ParseDay(ps.ByName("date"))
	if err != nil {
		h.writeError(w, r, "GetDay", apperrors.InvalidInput(invalidDayMessage))
		return
	}

	view, err := h.service.DayView(r.Context(), day)
	if err != nil {
		h.writeError(w, r, "GetDay", err)
		return
	}

	viewer, _ := h.gate.CurrentIdentity(r.Context())
	if err := httputil.WriteSuccess(w, redact(*view, viewer)); err != nil {
		h.log.Error("failed to write success response", "handler", "GetDay", "operation", "WriteSuccess", "error", err)
	}
}

// StreamDay keeps a live view of one day open as Server-Sent Events. Each
// event carries a complete DayView.
func (h *ReservationHandler) StreamDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := h.service.Hours().ParseDay(ps.ByName("date"))
	if err != nil {
		h.writeError(w, r, "StreamDay", apperrors.InvalidInput(invalidDayMessage))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, "StreamDay", apperrors.Internal("Streaming unsupported", nil))
		return
	}

	viewer, _ := h.gate.CurrentIdentity(r.Context())

	live := h.liveViews()
	defer live.Close()
	views, cancel := live.Observe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if err := live.SelectDay(r.Context(), day); err != nil {
		h.log.Warn("Live view started degraded", "day", day.Format(time.DateOnly), "error", err)
	}

	h.log.Debug("Live view stream opened", "day", day.Format(time.DateOnly), "remote_addr", r.RemoteAddr)
	defer h.log.Debug("Live view stream closed", "day", day.Format(time.DateOnly), "remote_addr", r.RemoteAddr)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			if err := writeEvent(w, dayViewEvent, redact(view, viewer)); err != nil {
				h.log.Debug("Live view stream write failed", "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// redact copies the view with customer phones masked for everyone but the
// provider and the reservation's owner. Owner ids are only shown to the
// provider.
func redact(view model.DayView, viewer *model.Identity) model.DayView {
	if viewer.IsProvider() {
		return view
	}

	masked := make(map[*model.Reservation]*model.Reservation, len(view.Reservations))
	reservations := make([]*model.Reservation, 0, len(view.Reservations))
	for _, r := range view.Reservations {
		cp := *r
		if viewer == nil || r.OwnerID != viewer.UserID {
			cp.CustomerPhone = sanitizer.MaskPhone(r.CustomerPhone)
			cp.OwnerID = ""
		}
		masked[r] = &cp
		reservations = append(reservations, &cp)
	}

	slots := make([]model.Slot, len(view.Slots))
	for i, s := range view.Slots {
		slots[i] = s
		if s.Reservation == nil {
			continue
		}
		if cp, ok := masked[s.Reservation]; ok {
			slots[i].Reservation = cp
			continue
		}
		cp := *s.Reservation
		cp.CustomerPhone = sanitizer.MaskPhone(cp.CustomerPhone)
		cp.OwnerID = ""
		slots[i].Reservation = &cp
	}

	view.Reservations = reservations
	view.Slots = slots
	return view
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	log := logger.FromContext(r.Context(), h.log)
	if appErr := apperrors.AsAppError(err); appErr.StatusCode() >= http.StatusInternalServerError {
		log.Error("request failed", "handler", handler, "code", appErr.Code, "error", err)
	}
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/days/:date", h.GetDay)
	router.GET("/api/v1/days/:date"+streamPathSuffix, h.StreamDay)
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations/mine", h.ListMine)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.POST("/api/v1/reservations/id/:id/approve", h.Approve)
	router.POST("/api/v1/reservations/id/:id/reject", h.Reject)
}

// IsStreamPath reports whether path is a live view stream route.
func IsStreamPath(path string) bool {
	return strings.HasSuffix(path, streamPathSuffix)
}
