// AngelaMos | 2026
// handler.go

package membership

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/bibliotech/internal/core"
	"github.com/carterperez-dev/bibliotech/internal/middleware"
)

// Handler exposes account lookups. Writes to accounts are served by the
// lifecycle handler.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/users/me", h.GetMe)
}

func (h *Handler) RegisterManagerRoutes(
	r chi.Router,
	authenticator, managerOnly func(http.Handler) http.Handler,
) {
	r.Route("/staff/users", func(r chi.Router) {
		r.Use(authenticator, managerOnly)
		r.Get("/", h.ListUsers)
		r.Get("/{userID}", h.GetUser)
	})
}

func userError(err error) error {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return core.NotFoundError("user")
	case errors.Is(err, core.ErrUnauthorized):
		return core.UnauthorizedError("")
	case errors.Is(err, core.ErrInvalidInput):
		return core.BadRequestError("invalid role filter")
	}
	return err
}

func (h *Handler) respond(w http.ResponseWriter, user *User, err error) {
	if err != nil {
		core.JSONError(w, userError(err))
		return
	}
	core.OK(w, ToUserResponse(user))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	h.respond(w, user, err)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	h.respond(w, user, err)
}

func listParams(r *http.Request) ListUsersParams {
	q := r.URL.Query()
	p := ListUsersParams{
		Page:     core.QueryInt(r, "page", 1),
		PageSize: core.QueryInt(r, "page_size", 20),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	p.Normalize()
	return p
}

// ListUsers pages through accounts, optionally filtered by role or by a
// username or email fragment.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := listParams(r)

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.JSONError(w, userError(err))
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}
