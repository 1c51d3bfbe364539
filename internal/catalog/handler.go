package catalog

import (
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/go-chi/chi/v5"
)

// Handler exposes the read-only catalog views.
type Handler struct {
	source MenuSource
	logger apt.Logger
}

func NewHandler(source MenuSource, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{source: source, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/menu", func(r chi.Router) {
		r.Get("/dishes", h.ListDishes)
		r.Get("/prices", h.GetPriceSheet)
	})
}

func (h *Handler) ListDishes(w http.ResponseWriter, r *http.Request) {
	menu, err := h.source.LoadMenu(r.Context())
	if err != nil {
		h.logger.Error("cannot load menu", "error", err)
		apt.RespondError(w, http.StatusServiceUnavailable, "Could not load menu")
		return
	}
	apt.RespondCollection(w, menu.Dishes, "menu/dishes")
}

func (h *Handler) GetPriceSheet(w http.ResponseWriter, r *http.Request) {
	menu, err := h.source.LoadMenu(r.Context())
	if err != nil {
		h.logger.Error("cannot load menu", "error", err)
		apt.RespondError(w, http.StatusServiceUnavailable, "Could not load price sheet")
		return
	}
	apt.RespondSuccess(w, menu.PriceSheet())
}
