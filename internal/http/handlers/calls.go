package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"

	"github.com/tbourn/go-call-agent/internal/domain"
	"github.com/tbourn/go-call-agent/internal/http/middleware"
	"github.com/tbourn/go-call-agent/internal/services"
)

// CallService is the call list controller consumed by the handlers.
type CallService interface {
	CreateOrUpdate(ctx context.Context, f domain.CallForm) (*domain.Call, error)
	BeginEdit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status domain.CallStatus) error
	ToggleForm()
	List(ctx context.Context) ([]domain.Call, error)
	View(ctx context.Context) (services.View, error)
}

// FormTokenStore remembers form tokens that produced a successful submit so
// SubmitGuard can recognise replays.
type FormTokenStore interface {
	Remember(ctx context.Context, token, callID string) error
}

// Handlers serves the call list page and its form posts.
type Handlers struct {
	calls    CallService
	tokens   FormTokenStore
	basePath string
}

// New binds the handlers to a call service. tokens may be nil, in which case
// submitted form tokens are not recorded. basePath is the mount point used
// for links and redirects.
func New(calls CallService, tokens FormTokenStore, basePath string) *Handlers {
	if basePath == "" {
		basePath = "/"
	}
	return &Handlers{calls: calls, tokens: tokens, basePath: basePath}
}

// indexPage is the data handed to index.html.
type indexPage struct {
	BasePath  string
	View      services.View
	Statuses  []domain.CallStatus
	FormToken string
	Error     string
	ErrorCode string
}

// callRow is one line of the CSV export.
type callRow struct {
	ID           string `csv:"id"`
	CustomerName string `csv:"customer_name"`
	Phone        string `csv:"phone"`
	Date         string `csv:"date"`
	Time         string `csv:"time"`
	Status       string `csv:"status"`
	Duration     string `csv:"duration"`
	Notes        string `csv:"notes"`
}

// Index renders the list with the form state.
func (h *Handlers) Index(c *gin.Context) {
	h.render(c, http.StatusOK, "", "")
}

// render draws index.html from a fresh view. A non-empty msg is shown above
// the form and its code is echoed in the X-Error-Code header.
func (h *Handlers) render(c *gin.Context, status int, code, msg string) {
	v, err := h.calls.View(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRenderFailed, "could not load calls")
		return
	}
	if code != "" {
		c.Header("X-Error-Code", code)
	}
	c.HTML(status, "index.html", indexPage{
		BasePath:  h.basePath,
		View:      v,
		Statuses:  domain.Statuses,
		FormToken: uuid.NewString(),
		Error:     msg,
		ErrorCode: code,
	})
}

// ToggleForm handles "+ New Call" and "Cancel".
func (h *Handlers) ToggleForm(c *gin.Context) {
	h.calls.ToggleForm()
	h.seeOther(c)
}

// Submit creates a call or saves the one being edited. Missing required
// fields re-render the page with 400 and the form still filled in. Replayed
// form tokens are redirected without touching the list.
func (h *Handlers) Submit(c *gin.Context) {
	if middleware.IsReplay(c) {
		h.seeOther(c)
		return
	}

	var f domain.CallForm
	if err := c.ShouldBind(&f); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid form body")
		return
	}

	ctx := c.Request.Context()
	call, err := h.calls.CreateOrUpdate(ctx, f)
	switch {
	case errors.Is(err, services.ErrRequiredField):
		h.render(c, http.StatusBadRequest, ErrCodeRequiredField, "Please fill in customer name, phone, date and time.")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not save call")
		return
	}

	if token, ok := middleware.FormToken(c); ok && h.tokens != nil {
		var id string
		if call != nil {
			id = call.ID
		}
		if err := h.tokens.Remember(ctx, token, id); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("form token not recorded")
		}
	}
	h.seeOther(c)
}

// Edit loads a call into the form.
func (h *Handlers) Edit(c *gin.Context) {
	if err := h.calls.BeginEdit(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load call")
		return
	}
	h.seeOther(c)
}

// Delete removes a call.
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.calls.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete call")
		return
	}
	h.seeOther(c)
}

// SetStatus marks a call completed, missed or scheduled via the "status"
// form field.
func (h *Handlers) SetStatus(c *gin.Context) {
	st := domain.CallStatus(c.PostForm("status"))
	err := h.calls.SetStatus(c.Request.Context(), c.Param("id"), st)
	switch {
	case errors.Is(err, services.ErrInvalidStatus):
		fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, "status must be scheduled, completed or missed")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update status")
		return
	}
	h.seeOther(c)
}

// ExportCSV downloads the list as calls.csv in list order.
func (h *Handlers) ExportCSV(c *gin.Context) {
	calls, err := h.calls.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, "could not load calls")
		return
	}

	rows := make([]*callRow, 0, len(calls))
	for _, cl := range calls {
		r := &callRow{
			ID:           cl.ID,
			CustomerName: cl.CustomerName,
			Phone:        cl.Phone,
			Date:         cl.Date,
			Time:         cl.Time,
			Status:       string(cl.Status),
			Notes:        cl.Notes,
		}
		if cl.Duration != nil {
			r.Duration = *cl.Duration
		}
		rows = append(rows, r)
	}

	b, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, "could not encode calls")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calls.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", b)
}
