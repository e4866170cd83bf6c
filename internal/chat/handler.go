// AngelaMos | 2026
// handler.go

package chat

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

type Request struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type Response struct {
	Reply string `json:"reply"`
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, limiter func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(limiter)

		r.Post("/chat", h.Chat)
	})
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	reply, err := h.service.Reply(r.Context(), req.Message)
	if err != nil {
		if appErr, ok := core.AsAppError(err); ok &&
			appErr.StatusCode >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "chat completion failed",
				"user_id", middleware.GetUserID(r.Context()),
				"code", appErr.Code,
				"error", appErr.Err,
			)
		}
		core.JSONError(w, err)
		return
	}

	core.OK(w, Response{Reply: reply})
}
