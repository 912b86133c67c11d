// Package services – CallListManager
//
// This file implements CallListManager, the single controller that owns the
// ordered list of call records together with the create/edit form state
// (form buffer, edit target, form visibility). Every public method is one UI
// event; a mutex serializes them so concurrent HTTP requests observe the same
// one-event-at-a-time semantics as a single-threaded UI.
//
// Status transitions: a new call is always scheduled. SetStatus overwrites the
// status unconditionally; the UI only offers scheduled -> completed|missed.
//
// Operations that target an unknown call id are silent no-ops.
//
// Observability: all public methods that touch the store are
// OpenTelemetry-instrumented; list mutations feed Prometheus counters.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/domain"
)

// CallRepo defines the repository contract required by CallListManager.
type CallRepo interface {
	// InsertCall appends a fully formed call to the end of the list.
	InsertCall(ctx context.Context, db *gorm.DB, c *domain.Call) error

	// ListCalls returns all calls in insertion order.
	ListCalls(ctx context.Context, db *gorm.DB) ([]domain.Call, error)

	// GetCall fetches a call by ID.
	GetCall(ctx context.Context, db *gorm.DB, id string) (*domain.Call, error)

	// UpdateCallDetails overwrites the editable fields of a call.
	UpdateCallDetails(ctx context.Context, db *gorm.DB, id string, f domain.CallForm) error

	// UpdateCallStatus sets the status of a call.
	UpdateCallStatus(ctx context.Context, db *gorm.DB, id string, status domain.CallStatus) error

	// DeleteCall removes a call permanently.
	DeleteCall(ctx context.Context, db *gorm.DB, id string) error

	// CallsStats returns the number of calls per status.
	CallsStats(ctx context.Context, db *gorm.DB) (map[domain.CallStatus]int64, error)
}

// View is a consistent snapshot of the list and form state for rendering.
type View struct {
	Calls     []domain.Call
	Form      domain.CallForm
	EditingID string
	ShowForm  bool
	Counts    map[domain.CallStatus]int64
}

// Editing reports whether the form is bound to an existing call.
func (v View) Editing() bool { return v.EditingID != "" }

// CallListManager owns the call list and the form state.
type CallListManager struct {
	// DB is the GORM handle used for storage.
	DB *gorm.DB
	// Repo is the call repository used by this service.
	Repo CallRepo
	// Now is the clock identifiers are minted from.
	Now func() time.Time

	mu        sync.Mutex
	lastID    int64
	form      domain.CallForm
	editingID string
	showForm  bool
}

// NewCallListManager constructs a CallListManager with a closed, empty form.
func NewCallListManager(db *gorm.DB, r CallRepo) *CallListManager {
	return &CallListManager{
		DB:   db,
		Repo: r,
		Now:  time.Now,
	}
}

// CreateOrUpdate submits the form. With an active edit target it overwrites
// that call's name, phone, date, time and notes; otherwise it appends a new
// scheduled call. Either way the form is cleared and closed afterwards.
//
// If the edit target no longer exists nothing is written and (nil, nil) is
// returned. If a required field is empty, ErrRequiredField is returned, no
// call is written, and the form stays open holding the submitted values.
func (s *CallListManager) CreateOrUpdate(ctx context.Context, f domain.CallForm) (*domain.Call, error) {
	ctx, span := tracer().Start(ctx, "CreateOrUpdate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if missing := f.Missing(); len(missing) > 0 {
		s.form = f
		s.showForm = true
		return nil, fmt.Errorf("%w: %s", ErrRequiredField, strings.Join(missing, ", "))
	}

	var (
		out *domain.Call
		err error
	)
	if s.editingID != "" {
		span.SetAttributes(attribute.String("call.id", s.editingID))
		out, err = s.update(ctx, s.editingID, f)
	} else {
		out, err = s.create(ctx, f)
		if out != nil {
			span.SetAttributes(attribute.String("call.id", out.ID))
		}
	}
	if err != nil {
		return nil, err
	}

	s.resetForm()
	s.showForm = false
	s.refreshGauges(ctx)
	return out, nil
}

// create mints a new scheduled call from f and appends it.
func (s *CallListManager) create(ctx context.Context, f domain.CallForm) (*domain.Call, error) {
	c := &domain.Call{
		ID:           s.mintID(),
		CustomerName: f.CustomerName,
		Phone:        f.Phone,
		Date:         f.Date,
		Time:         f.Time,
		Notes:        f.Notes,
		Status:       domain.StatusScheduled,
	}
	if err := s.Repo.InsertCall(ctx, s.DB, c); err != nil {
		return nil, err
	}
	callOps.WithLabelValues("create").Inc()
	return c, nil
}

// update overwrites the editable fields of call id and returns the result.
func (s *CallListManager) update(ctx context.Context, id string, f domain.CallForm) (*domain.Call, error) {
	if err := s.Repo.UpdateCallDetails(ctx, s.DB, id, f); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	callOps.WithLabelValues("update").Inc()
	return s.Repo.GetCall(ctx, s.DB, id)
}

// BeginEdit loads call id into the form buffer and opens the form in edit
// mode. Unknown ids leave the state unchanged.
func (s *CallListManager) BeginEdit(ctx context.Context, id string) error {
	ctx, span := tracer().Start(ctx, "BeginEdit",
		trace.WithAttributes(attribute.String("call.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.Repo.GetCall(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	s.form = c.Form()
	s.editingID = c.ID
	s.showForm = true
	return nil
}

// Delete removes call id. Unknown ids are ignored.
func (s *CallListManager) Delete(ctx context.Context, id string) error {
	ctx, span := tracer().Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("call.id", id)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.DeleteCall(ctx, s.DB, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	callOps.WithLabelValues("delete").Inc()
	s.refreshGauges(ctx)
	return nil
}

// SetStatus overwrites the status of call id. Unknown ids are ignored;
// statuses outside the enumeration return ErrInvalidStatus.
func (s *CallListManager) SetStatus(ctx context.Context, id string, status domain.CallStatus) error {
	ctx, span := tracer().Start(ctx, "SetStatus",
		trace.WithAttributes(
			attribute.String("call.id", id),
			attribute.String("call.status", string(status)),
		),
	)
	defer span.End()

	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.UpdateCallStatus(ctx, s.DB, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	callOps.WithLabelValues("status").Inc()
	callTransitions.WithLabelValues(string(status)).Inc()
	s.refreshGauges(ctx)
	return nil
}

// ToggleForm opens a closed form or closes an open one. In both directions
// the edit target and the form buffer are cleared.
func (s *CallListManager) ToggleForm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.showForm = !s.showForm
	s.resetForm()
}

// List returns all calls in insertion order.
func (s *CallListManager) List(ctx context.Context) ([]domain.Call, error) {
	ctx, span := tracer().Start(ctx, "List")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Repo.ListCalls(ctx, s.DB)
}

// View returns a snapshot of the list, the form state and per-status counts.
func (s *CallListManager) View(ctx context.Context) (View, error) {
	ctx, span := tracer().Start(ctx, "View")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	calls, err := s.Repo.ListCalls(ctx, s.DB)
	if err != nil {
		return View{}, err
	}
	counts, err := s.Repo.CallsStats(ctx, s.DB)
	if err != nil {
		return View{}, err
	}
	span.SetAttributes(attribute.Int("calls.count", len(calls)))

	return View{
		Calls:     calls,
		Form:      s.form,
		EditingID: s.editingID,
		ShowForm:  s.showForm,
		Counts:    counts,
	}, nil
}

// resetForm clears the buffer and the edit target. Callers hold s.mu.
func (s *CallListManager) resetForm() {
	s.form = domain.CallForm{}
	s.editingID = ""
}

// mintID derives a new identifier from the current time in milliseconds,
// stepping past the previous one when the clock has not advanced. Callers
// hold s.mu.
func (s *CallListManager) mintID() string {
	id := s.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

// refreshGauges republishes per-status counts. Failures only leave the
// gauges stale.
func (s *CallListManager) refreshGauges(ctx context.Context) {
	if counts, err := s.Repo.CallsStats(ctx, s.DB); err == nil {
		observeCounts(counts)
	}
}

func tracer() trace.Tracer { return otel.Tracer("services/CallListManager") }
