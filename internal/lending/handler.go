// AngelaMos | 2026
// handler.go

package lending

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, memberOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(memberOnly)

		r.Get("/loans", h.ListLoans)
		r.Get("/reservations", h.ListReservations)
	})
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ActiveLoans(
		r.Context(),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, loans)
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ActiveReservations(
		r.Context(),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, reservations)
}
