package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"slotbook/internal/identity"
	"slotbook/internal/notifications"
	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/validator"
	"slotbook/internal/slots"
	"slotbook/pkg/clock"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/locale"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
	"slotbook/pkg/validation"
)

// LifecycleManager enforces how reservations are created and how their
// status moves. Every call resolves the caller through the identity gate.
type LifecycleManager interface {
	Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error)
	Approve(ctx context.Context, id string) (*model.Reservation, error)
	Reject(ctx context.Context, id string) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	ListMine(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error)
	DayView(ctx context.Context, day time.Time) (*model.DayView, error)
	Hours() slots.BusinessHours
}

type lifecycleManager struct {
	store      repository.ReservationStore
	validator  *validator.ReservationValidator
	gate       identity.Gate
	dispatcher notifications.Dispatcher
	hours      slots.BusinessHours
	clock      clock.Clock
	cfg        *config.Config
	region     string
}

func NewLifecycleManager(
	store repository.ReservationStore,
	validator *validator.ReservationValidator,
	gate identity.Gate,
	dispatcher notifications.Dispatcher,
	hours slots.BusinessHours,
	c clock.Clock,
	cfg *config.Config,
) LifecycleManager {
	if dispatcher == nil {
		dispatcher = notifications.Nop{}
	}
	if c == nil {
		c = clock.Real()
	}
	return &lifecycleManager{
		store:      store,
		validator:  validator,
		gate:       gate,
		dispatcher: dispatcher,
		hours:      hours,
		clock:      c,
		cfg:        cfg,
		region:     locale.DetectRegion(cfg.BusinessTimeZone),
	}
}

func (m *lifecycleManager) Hours() slots.BusinessHours {
	return m.hours
}

func (m *lifecycleManager) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	caller, ok := m.gate.CurrentIdentity(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Sign in to make a reservation")
	}
	if req == nil {
		return nil, apperrors.InvalidInput("Reservation request cannot be empty")
	}

	m.sanitize(req)
	if err := m.validator.ValidateRequest(req); err != nil {
		return nil, toAppError(err)
	}

	start := req.StartTime
	if !slots.OnGrid(start, m.hours) {
		return nil, apperrors.SlotUnavailable("Start time is not a bookable slot").WithDetails(map[string]any{
			"start_time": start,
		})
	}

	now := m.clock.Now()
	if start.Before(now) {
		return nil, apperrors.SlotInPast("Start time has already passed")
	}

	// Pre-check against the current day; the store is still the final arbiter.
	from, to := m.hours.DayRange(start)
	records, err := m.store.Query(ctx, repository.TimeRange{From: from, To: to})
	if err != nil {
		return nil, m.storeError("Failed to check slot availability", err)
	}
	if slot, found := slots.Availability(start, m.hours, records, now); !found || !slot.Available {
		return nil, apperrors.SlotUnavailable("Slot is already reserved")
	}

	res := &model.Reservation{
		StartTime:     start.UTC(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		OwnerID:       caller.UserID,
		Status:        model.StatusPending,
	}
	if err := m.validator.Validate(res); err != nil {
		return nil, toAppError(err)
	}

	created, err := m.store.Create(ctx, res)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrSlotTaken) {
			m.cfg.Log.Info("Reservation lost race for slot", "start_time", start, "owner_id", caller.UserID)
			return nil, apperrors.SlotUnavailable("Slot is already reserved")
		}
		return nil, m.storeError("Failed to create reservation", err)
	}

	m.cfg.Log.Info("Reservation created",
		"id", created.ID,
		"start_time", created.StartTime,
		"owner_id", created.OwnerID,
	)
	return created, nil
}

func (m *lifecycleManager) Approve(ctx context.Context, id string) (*model.Reservation, error) {
	return m.transition(ctx, id, model.StatusApproved)
}

func (m *lifecycleManager) Reject(ctx context.Context, id string) (*model.Reservation, error) {
	return m.transition(ctx, id, model.StatusRejected)
}

func (m *lifecycleManager) transition(ctx context.Context, id string, to model.ReservationStatus) (*model.Reservation, error) {
	caller, ok := m.gate.CurrentIdentity(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Sign in required")
	}
	if !caller.IsProvider() {
		return nil, apperrors.Unauthorized("Only the provider can change a reservation status")
	}

	current, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(current.Status, to) {
		return nil, apperrors.InvalidTransition(string(current.Status), string(to))
	}

	updated, err := m.store.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		switch {
		case errors.Is(err, reservationserrors.ErrStatusChanged):
			from := model.StatusPending
			if latest, findErr := m.store.FindByID(ctx, id); findErr == nil {
				from = latest.Status
			}
			return nil, apperrors.InvalidTransition(string(from), string(to))
		case errors.Is(err, reservationserrors.ErrNotFound), errors.Is(err, reservationserrors.ErrInvalidID):
			return nil, apperrors.NotFoundWithID("Reservation", id)
		default:
			return nil, m.storeError("Failed to update reservation", err)
		}
	}

	m.cfg.Log.Info("Reservation status changed",
		"id", updated.ID,
		"from", current.Status,
		"to", updated.Status,
		"provider_id", caller.UserID,
	)
	m.dispatcher.Dispatch(model.NewStatusChangedEvent(updated, m.clock.Now()))
	return updated, nil
}

// GetByID returns a reservation to its owner or to the provider. Other
// callers get NotFound so ids cannot be probed.
func (m *lifecycleManager) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	caller, ok := m.gate.CurrentIdentity(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("Sign in required")
	}

	res, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsProvider() && res.OwnerID != caller.UserID {
		return nil, apperrors.NotFoundWithID("Reservation", id)
	}
	return res, nil
}

func (m *lifecycleManager) ListMine(ctx context.Context, limit int, offset int64) ([]*model.Reservation, int64, error) {
	caller, ok := m.gate.CurrentIdentity(ctx)
	if !ok {
		return nil, 0, apperrors.Unauthorized("Sign in required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var (
		count             int64
		records           []*model.Reservation
		errCount, errFind error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = m.store.CountByOwner(ctx, caller.UserID)
	}()

	go func() {
		defer wg.Done()
		records, errFind = m.store.FindByOwner(ctx, caller.UserID, limit, offset)
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, m.storeError("Failed to count reservations", errCount)
	}
	if errFind != nil {
		return nil, 0, m.storeError("Failed to list reservations", errFind)
	}
	return records, count, nil
}

// DayView is a one-shot view of the business day containing day.
func (m *lifecycleManager) DayView(ctx context.Context, day time.Time) (*model.DayView, error) {
	from, to := m.hours.DayRange(day)
	records, err := m.store.Query(ctx, repository.TimeRange{From: from, To: to})
	if err != nil {
		return nil, m.storeError("Failed to load day", err)
	}

	view, err := slots.View(day, m.hours, records, m.clock.Now())
	if err != nil {
		return nil, apperrors.ConfigError("Business hours are misconfigured")
	}
	return &view, nil
}

func (m *lifecycleManager) find(ctx context.Context, id string) (*model.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	res, err := m.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) || errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		return nil, m.storeError("Failed to retrieve reservation", err)
	}
	return res, nil
}

func (m *lifecycleManager) sanitize(req *model.ReservationRequest) {
	req.CustomerName = sanitizer.NormalizeName(req.CustomerName)
	if phone := sanitizer.NormalizePhone(req.CustomerPhone, m.region); phone != "" {
		req.CustomerPhone = phone
	} else {
		req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	}
}

// storeError maps a store failure to the caller-facing taxonomy. Nothing is
// retried here.
func (m *lifecycleManager) storeError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}

	m.cfg.Log.Error(message, "error", err)
	switch {
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return apperrors.Timeout(message)
	case errors.Is(err, reservationserrors.ErrStoreUnavailable), mongo.IsNetworkError(err):
		return apperrors.StoreUnavailable(err)
	default:
		return apperrors.Internal(message, err)
	}
}

func toAppError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs.AppError()
	}
	return apperrors.Internal("Failed to validate reservation", err)
}
