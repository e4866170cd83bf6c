// AngelaMos | 2026
// handler.go

package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/bibliotech/internal/catalogue"
	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/membership"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

type Handler struct {
	engine         *Engine
	validator      *validator.Validate
	maxUploadBytes int64
}

func NewHandler(engine *Engine, maxUploadBytes int64) *Handler {
	return &Handler{
		engine:         engine,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes mounts every state-changing endpoint. Role checks happen
// in the engine; the router only requires a valid token where an actor is
// needed.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Post("/register", h.Register)
	r.Post("/register/{userID}/payment", h.ActivateSubscription)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/documents", h.CreateDocument)
		r.Put("/documents/{documentID}", h.EditDocument)
		r.Put("/documents/{documentID}/cover", h.SetCover)
		r.Delete("/documents/{documentID}", h.DeleteDocument)

		r.Post("/documents/{documentID}/borrow", h.BorrowDigital)
		r.Post("/documents/{documentID}/reserve", h.Reserve)
		r.Post("/documents/{documentID}/fines/payment", h.SimulateFinePayment)

		r.Post("/circulation/checkouts", h.RecordCheckout)
		r.Post("/circulation/returns", h.RecordReturn)

		r.Get("/loans/{loanID}/file", h.AccessLoan)
		r.Post("/loans/{loanID}/return", h.ReturnLoan)
		r.Post("/reservations/{reservationID}/cancel", h.CancelReservation)

		r.Post("/staff/users", h.CreateStaff)
		r.Delete("/staff/users/{userID}", h.DeleteUser)
	})
}

func actorFrom(r *http.Request) Actor {
	return Actor{
		ID:   middleware.GetUserID(r.Context()),
		Role: middleware.GetUserRole(r.Context()),
	}
}

// decode reads and validates a JSON body, writing the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(r, dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func respond(w http.ResponseWriter, status int, res Result) {
	core.JSON(w, status, core.Response{
		Success: true,
		Data:    ToResultResponse(res),
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req membership.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Register(r.Context(), RegisterInput{
		Username:         req.Username,
		Email:            req.Email,
		Password:         req.Password,
		SubscriptionType: req.SubscriptionType,
	})
	if err != nil {
		core.JSONError(w, err)
		return
	}

	out := ToResultResponse(res)
	plan := membership.Plans[req.SubscriptionType]
	out.Plan = &plan

	core.Created(w, out)
}

func (h *Handler) ActivateSubscription(w http.ResponseWriter, r *http.Request) {
	var req membership.PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.ActivateSubscription(
		r.Context(),
		chi.URLParam(r, "userID"),
		PaymentInput{
			SubscriptionType: req.SubscriptionType,
			CardholderName:   req.CardholderName,
			CardNumber:       req.CardNumber,
			ExpiryDate:       req.ExpiryDate,
			CVC:              req.CVC,
		},
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func documentInput(req catalogue.DocumentRequest) DocumentInput {
	in := DocumentInput{
		Title:       req.Title,
		Author:      req.Author,
		Summary:     req.Summary,
		IsPhysical:  req.IsPhysical,
		IsDigital:   req.IsDigital,
		FilePath:    req.FilePath,
		RemoveCover: req.RemoveCover,
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	return in
}

func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req catalogue.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.CreateDocument(r.Context(), actorFrom(r), documentInput(req))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusCreated, res)
}

func (h *Handler) EditDocument(w http.ResponseWriter, r *http.Request) {
	var req catalogue.DocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.EditDocument(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
		documentInput(req),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

// SetCover accepts a multipart upload with the image in the "cover" field.
func (h *Handler) SetCover(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		core.BadRequest(w, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("cover")
	if err != nil {
		core.BadRequest(w, "cover file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	res, err := h.engine.SetCover(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
		header.Filename,
		file,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.DeleteDocument(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) BorrowDigital(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.BorrowDigital(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusCreated, res)
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Reserve(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Outcome != OutcomeApplied {
		status = http.StatusOK
	}
	respond(w, status, res)
}

func (h *Handler) SimulateFinePayment(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.SimulateFinePayment(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "documentID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) RecordCheckout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.RecordCheckout(
		r.Context(),
		actorFrom(r),
		req.DocumentID,
		req.MemberUsername,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) RecordReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.RecordReturn(r.Context(), actorFrom(r), req.DocumentID)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

// AccessLoan streams the PDF inline.
func (h *Handler) AccessLoan(w http.ResponseWriter, r *http.Request) {
	file, err := h.engine.AccessLoan(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "loanID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}
	defer file.Body.Close() //nolint:errcheck

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", file.Name))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, file.Body); err != nil && !errors.Is(err, r.Context().Err()) {
		slog.WarnContext(r.Context(), "pdf stream interrupted",
			"file", file.Name,
			"error", err,
		)
	}
}

func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.ReturnLoan(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "loanID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.CancelReservation(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "reservationID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req membership.CreateStaffRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.CreateStaff(r.Context(), actorFrom(r), StaffInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusCreated, res)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.DeleteUser(
		r.Context(),
		actorFrom(r),
		chi.URLParam(r, "userID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	respond(w, http.StatusOK, res)
}
