package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/telemetry"
	"github.com/go-chi/chi/v5"
)

const MaxBodyBytes = 1 << 20

// Handler serves client views of orders and the customer steps. Responses
// never include the payment token.
type Handler struct {
	logger apt.Logger
	tlm    *telemetry.HTTP
	repo   OrderRepo
	steps  *Steps
}

func NewHandler(repo OrderRepo, steps *Steps, logger apt.Logger) *Handler {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Handler{
		logger: logger,
		tlm:    telemetry.NewHTTP(),
		repo:   repo,
		steps:  steps,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.StartOrder)
		r.Get("/{id}", h.GetOrder)
		r.Post("/{id}/items", h.AddItem)
		r.Post("/{id}/token", h.AttachToken)
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	log := h.log(r)

	user := r.URL.Query().Get("user")
	if user == "" {
		apt.RespondError(w, http.StatusBadRequest, "user is required")
		return
	}

	orders, err := h.repo.ListByUser(r.Context(), user)
	if err != nil {
		log.Error("cannot list orders", "user", user, "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not list orders")
		return
	}

	views := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		views = append(views, o.AsClientView())
	}
	apt.RespondCollection(w, views, "orders")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetOrder")
	defer finish()

	log := h.log(r)
	id := chi.URLParam(r, "id")

	o, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.respondStepError(w, log, "cannot load order", id, err)
		return
	}

	apt.RespondSuccess(w, o.AsClientView())
}

type StartOrderRequest struct {
	User string `json:"user"`
}

func (h *Handler) StartOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.StartOrder")
	defer finish()

	log := h.log(r)

	var req StartOrderRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	o, err := h.steps.Start(r.Context(), req.User)
	if err != nil {
		log.Error("cannot start order", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not start order")
		return
	}

	w.WriteHeader(http.StatusCreated)
	apt.RespondSuccess(w, o.AsClientView())
}

type AddItemRequest struct {
	Item    string              `json:"item"`
	Options map[string][]string `json:"options"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddItem")
	defer finish()

	log := h.log(r)
	id := chi.URLParam(r, "id")

	var req AddItemRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	o, err := h.steps.AddItem(r.Context(), id, NewOrderItem(req.Item, req.Options))
	if err != nil {
		h.respondStepError(w, log, "cannot add item", id, err)
		return
	}

	apt.RespondSuccess(w, o.AsClientView())
}

type AttachTokenRequest struct {
	Token string `json:"token"`
}

func (h *Handler) AttachToken(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AttachToken")
	defer finish()

	log := h.log(r)
	id := chi.URLParam(r, "id")

	var req AttachTokenRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.Token == "" {
		apt.RespondError(w, http.StatusBadRequest, "token is required")
		return
	}

	o, err := h.steps.AttachToken(r.Context(), id, req.Token)
	if err != nil {
		h.respondStepError(w, log, "cannot attach token", id, err)
		return
	}

	apt.RespondSuccess(w, o.AsClientView())
}

func (h *Handler) respondStepError(w http.ResponseWriter, log apt.Logger, msg, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		apt.RespondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrOrderClosed):
		apt.RespondError(w, http.StatusConflict, "Order is closed")
	case errors.Is(err, ErrInvalidSelection):
		apt.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrMalformedDocument):
		log.Info(msg, "id", id, "error", err)
		apt.RespondError(w, http.StatusUnprocessableEntity, "Order document is malformed")
	default:
		log.Error(msg, "id", id, "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Could not process order")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log apt.Logger, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("failed to decode request body", "error", err)
		apt.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}

	return true
}

func (h *Handler) log(r *http.Request) apt.Logger {
	return h.logger.With("request_id", r.Context().Value("request_id"))
}
