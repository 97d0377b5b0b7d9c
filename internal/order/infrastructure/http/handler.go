package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogdom "github.com/HurmakR/herabuna-b2b/internal/catalog/domain"
	catalogpg "github.com/HurmakR/herabuna-b2b/internal/catalog/infrastructure/postgres"
	invdom "github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
	"github.com/HurmakR/herabuna-b2b/internal/order/application"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
)

// StockAdjuster applies manual staff stock corrections.
type StockAdjuster interface {
	Adjust(ctx context.Context, unit invdom.UnitRef, delta int) error
	Available(ctx context.Context, unit invdom.UnitRef) (int, error)
}

// Handler exposes the order lifecycle over REST. Identity arrives in
// headers resolved by the gateway in front of us: X-Dealer-ID plus
// X-Staff for back-office users.
type Handler struct {
	log    *slog.Logger
	svc    *application.Service
	places application.Locations
	stock  StockAdjuster
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, svc *application.Service, places application.Locations, stock StockAdjuster) *Handler {
	return &Handler{log: log, svc: svc, places: places, stock: stock, tracer: otel.Tracer("order-http")}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.getCart)
		r.Delete("/", h.clearCart)
		r.Post("/lines", h.addLine)
		r.Patch("/lines/{lineID}", h.updateLine)
		r.Delete("/lines/{lineID}", h.removeLine)
		r.Post("/destination", h.setDestination)
		r.Post("/submit", h.submit)
	})

	r.Post("/stock/adjust", h.adjustStock)

	r.Route("/shipping", func(r chi.Router) {
		r.Get("/cities", h.searchCities)
		r.Get("/warehouses", h.searchWarehouses)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{orderID}", h.get)
		r.Get("/{orderID}/status", h.status)
		r.Delete("/{orderID}", h.delete)
		r.Post("/{orderID}/confirm", h.confirm)
		r.Post("/{orderID}/cancel", h.cancel)
		r.Post("/{orderID}/ship", h.ship)
		r.Get("/{orderID}/label", h.label)
	})

	return r
}

func actorFrom(r *http.Request) application.Actor {
	return application.Actor{
		DealerID: r.Header.Get("X-Dealer-ID"),
		Staff:    r.Header.Get("X-Staff") == "true",
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Cart(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

type addLineRequest struct {
	ProductID string            `json:"product_id"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Qty       int               `json:"qty"`
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "cart.addLine")
	defer span.End()

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("bad request body"))
		return
	}
	o, err := h.svc.AddLine(ctx, actorFrom(r), req.ProductID, req.Attrs, req.Qty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

type updateLineRequest struct {
	Qty int `json:"qty"`
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("bad request body"))
		return
	}
	o, err := h.svc.UpdateLine(r.Context(), actorFrom(r), chi.URLParam(r, "lineID"), req.Qty)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.RemoveLine(r.Context(), actorFrom(r), chi.URLParam(r, "lineID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCart(r.Context(), actorFrom(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type destinationRequest struct {
	City      string `json:"city"`
	Warehouse string `json:"warehouse"`
}

func (h *Handler) setDestination(w http.ResponseWriter, r *http.Request) {
	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("bad request body"))
		return
	}
	o, err := h.svc.SetDestination(r.Context(), actorFrom(r), req.City, req.Warehouse)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "order.submit")
	defer span.End()

	o, err := h.svc.Submit(ctx, actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(r.URL.Query().Get("status"))
	orders, err := h.svc.List(r.Context(), actorFrom(r), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]orderJSON, 0, len(orders))
	for _, o := range orders {
		views = append(views, orderView(o))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), actorFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

// status is the polling endpoint; it is served from the redis cache when
// the order is still warm there.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), actorFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "orderID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.staffTransition(w, r, h.svc.Confirm)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.staffTransition(w, r, h.svc.Cancel)
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "order.ship")
	defer span.End()

	o, err := h.svc.Ship(ctx, actorFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

func (h *Handler) label(w http.ResponseWriter, r *http.Request) {
	pdf, err := h.svc.Label(r.Context(), actorFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	_, _ = w.Write(pdf)
}

type adjustStockRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Delta     int    `json:"delta"`
}

// adjustStock is the staff restock / write-off entry; it also retries the
// catalog push because the adjustment enqueues a fresh absolute quantity.
func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).Staff {
		h.writeJSON(w, http.StatusForbidden, errBody("forbidden"))
		return
	}
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("bad request body"))
		return
	}
	unit := invdom.UnitRef{ProductID: req.ProductID, VariantID: req.VariantID}
	if err := h.stock.Adjust(r.Context(), unit, req.Delta); err != nil {
		h.writeError(w, r, err)
		return
	}
	available, err := h.stock.Available(r.Context(), unit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"available": available})
}

func (h *Handler) searchCities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeJSON(w, http.StatusBadRequest, errBody("missing query parameter q"))
		return
	}
	places, err := h.places.SearchCities(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, places)
}

func (h *Handler) searchWarehouses(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	if city == "" {
		h.writeJSON(w, http.StatusBadRequest, errBody("missing query parameter city"))
		return
	}
	places, err := h.places.Warehouses(r.Context(), city, r.URL.Query().Get("q"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, places)
}

func (h *Handler) staffTransition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, actor application.Actor, orderID string) (domain.Order, error)) {
	o, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderView(o))
}

type errorJSON struct {
	Error     string         `json:"error"`
	Shortages []shortageJSON `json:"shortages,omitempty"`
}

type shortageJSON struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func errBody(msg string) errorJSON { return errorJSON{Error: msg} }

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		shortage   *invdom.ShortageError
		oneShort   *invdom.InsufficientStockError
		transition *domain.InvalidTransitionError
		shipErr    *domain.ShippingDocumentError
	)
	switch {
	case errors.As(err, &shortage):
		body := errBody("insufficient stock")
		for _, s := range shortage.Shortages {
			body.Shortages = append(body.Shortages, shortageJSON{
				ProductID: s.Unit.ProductID,
				VariantID: s.Unit.VariantID,
				Requested: s.Requested,
				Available: s.Available,
			})
		}
		h.writeJSON(w, http.StatusConflict, body)
	case errors.As(err, &oneShort):
		body := errBody("insufficient stock")
		body.Shortages = []shortageJSON{{
			ProductID: oneShort.Unit.ProductID,
			VariantID: oneShort.Unit.VariantID,
			Requested: oneShort.Requested,
			Available: oneShort.Available,
		}}
		h.writeJSON(w, http.StatusConflict, body)
	case errors.As(err, &transition):
		h.writeJSON(w, http.StatusConflict, errBody(transition.Error()))
	case errors.As(err, &shipErr):
		h.log.Error("shipping document failed", "order_id", shipErr.OrderID, "error", shipErr.Err)
		h.writeJSON(w, http.StatusBadGateway, errBody("shipping document could not be created"))
	case errors.Is(err, catalogdom.ErrNoMatchingVariant):
		h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	case errors.Is(err, domain.ErrForbidden):
		h.writeJSON(w, http.StatusForbidden, errBody("forbidden"))
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrNoDraft),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, catalogpg.ErrProductNotFound):
		h.writeJSON(w, http.StatusNotFound, errBody(err.Error()))
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrEmptyOrder),
		errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrNoDestination):
		h.writeJSON(w, http.StatusBadRequest, errBody(err.Error()))
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errBody("internal error"))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("response encode failed", "error", err)
	}
}
