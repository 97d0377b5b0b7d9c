package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	invdom "github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
	"github.com/HurmakR/herabuna-b2b/internal/order/domain"
	shipdom "github.com/HurmakR/herabuna-b2b/internal/shipping/domain"
	"github.com/HurmakR/herabuna-b2b/pkg/tracing"
)

// Actor identifies who requests an operation. Authentication itself is
// external; handlers hand us the resolved identity.
type Actor struct {
	DealerID string
	Staff    bool
}

// Service drives the order lifecycle: cart mutations, submission with
// stock reservation, and the staff transitions.
type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	engine   ReservationEngine
	catalog  CatalogReader
	shipping ShippingClient
	places   Locations
	cache    StatusCache
}

func NewService(log *slog.Logger, repo OrderRepository, engine ReservationEngine,
	catalog CatalogReader, shipping ShippingClient, places Locations, cache StatusCache) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		engine:   engine,
		catalog:  catalog,
		shipping: shipping,
		places:   places,
		cache:    cache,
	}
}

// Cart returns the dealer's open draft.
func (s *Service) Cart(ctx context.Context, actor Actor) (domain.Order, error) {
	return s.repo.GetDraft(ctx, actor.DealerID)
}

// AddLine puts a unit into the dealer's cart, creating the draft lazily.
// The selected attributes resolve a variant when the product has any; the
// wholesale price is snapshotted on the line. Quantities beyond current
// availability are rejected outright, never capped.
func (s *Service) AddLine(ctx context.Context, actor Actor, productID string, attrs map[string]string, qty int) (domain.Order, error) {
	if qty <= 0 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}
	p, err := s.catalog.ProductWithVariants(ctx, productID)
	if err != nil {
		return domain.Order{}, err
	}
	if !p.IsActive {
		return domain.Order{}, domain.ErrProductInactive
	}

	unit := invdom.UnitRef{ProductID: p.ID}
	price := p.WholesalePrice
	var lineAttrs map[string]string
	if p.HasVariants() {
		v, err := s.catalog.MatchVariant(ctx, p, attrs)
		if err != nil {
			return domain.Order{}, err
		}
		unit.VariantID = v.ID
		price = v.WholesalePrice
		lineAttrs = v.Attributes
	}

	o, err := s.repo.EnsureDraft(ctx, actor.DealerID)
	if err != nil {
		return domain.Order{}, err
	}

	line := o.LineFor(unit.ProductID, unit.VariantID)
	want := qty
	if line != nil {
		want += line.Qty
	}
	available, err := s.engine.Available(ctx, unit)
	if err != nil {
		return domain.Order{}, err
	}
	if want > available {
		return domain.Order{}, &invdom.InsufficientStockError{Unit: unit, Requested: want, Available: available}
	}

	if line == nil {
		o.Lines = append(o.Lines, domain.Line{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: unit.ProductID,
			VariantID: unit.VariantID,
			Qty:       qty,
			Price:     price,
			Attrs:     lineAttrs,
		})
		line = &o.Lines[len(o.Lines)-1]
	} else {
		line.Qty = want
	}
	o.Recalc()

	if err := s.repo.SaveLine(ctx, o, *line); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// UpdateLine sets a draft line's quantity; zero or less removes the line.
func (s *Service) UpdateLine(ctx context.Context, actor Actor, lineID string, qty int) (domain.Order, error) {
	if qty <= 0 {
		return s.RemoveLine(ctx, actor, lineID)
	}
	o, err := s.repo.GetDraft(ctx, actor.DealerID)
	if err != nil {
		return domain.Order{}, err
	}
	line := o.FindLine(lineID)
	if line == nil {
		return domain.Order{}, domain.ErrLineNotFound
	}

	available, err := s.engine.Available(ctx, line.Unit())
	if err != nil {
		return domain.Order{}, err
	}
	if qty > available {
		return domain.Order{}, &invdom.InsufficientStockError{Unit: line.Unit(), Requested: qty, Available: available}
	}

	line.Qty = qty
	o.Recalc()
	if err := s.repo.SaveLine(ctx, o, *line); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// RemoveLine drops a line from the draft.
func (s *Service) RemoveLine(ctx context.Context, actor Actor, lineID string) (domain.Order, error) {
	o, err := s.repo.GetDraft(ctx, actor.DealerID)
	if err != nil {
		return domain.Order{}, err
	}
	line := o.FindLine(lineID)
	if line == nil {
		return domain.Order{}, domain.ErrLineNotFound
	}

	kept := o.Lines[:0]
	for _, l := range o.Lines {
		if l.ID != lineID {
			kept = append(kept, l)
		}
	}
	o.Lines = kept
	o.Recalc()
	if err := s.repo.DeleteLine(ctx, o, lineID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// ClearCart deletes the dealer's draft with all its lines.
func (s *Service) ClearCart(ctx context.Context, actor Actor) error {
	o, err := s.repo.GetDraft(ctx, actor.DealerID)
	if err != nil {
		if errors.Is(err, domain.ErrNoDraft) {
			return nil
		}
		return err
	}
	return s.repo.Delete(ctx, o.ID)
}

// SetDestination resolves the dealer's city and warehouse queries through
// the location service and stores the references on the draft. Resolution
// failures surface to the dealer before submission reaches shipping.
func (s *Service) SetDestination(ctx context.Context, actor Actor, cityQuery, warehouseQuery string) (domain.Order, error) {
	o, err := s.repo.GetDraft(ctx, actor.DealerID)
	if err != nil {
		return domain.Order{}, err
	}

	cities, err := s.places.SearchCities(ctx, cityQuery)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve city %q: %w", cityQuery, err)
	}
	if len(cities) == 0 {
		return domain.Order{}, fmt.Errorf("resolve city %q: no match", cityQuery)
	}
	city := cities[0]

	warehouses, err := s.places.Warehouses(ctx, city.Ref, warehouseQuery)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve warehouse %q: %w", warehouseQuery, err)
	}
	if len(warehouses) == 0 {
		return domain.Order{}, fmt.Errorf("resolve warehouse %q in %s: no match", warehouseQuery, city.Name)
	}
	wh := warehouses[0]

	o.Destination = domain.Destination{
		CityRef:       city.Ref,
		CityName:      city.Name,
		WarehouseRef:  wh.Ref,
		WarehouseName: wh.Name,
	}
	if err := s.repo.SetDestination(ctx, o.ID, o.Destination); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// Submit turns the draft into a submitted order: all lines are reserved
// atomically, totals are recomputed, and the submission event is queued for
// the notification pipeline. A shortage on any line rejects the whole
// submission and leaves every unit untouched.
func (s *Service) Submit(ctx context.Context, actor Actor) (domain.Order, error) {
	o, err := s.repo.GetDraft(ctx, actor.DealerID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(o.Lines) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}

	if err := s.engine.Reserve(ctx, o.ID, o.LineQtys()); err != nil {
		return domain.Order{}, err
	}

	o.Recalc()
	payload, err := json.Marshal(domain.OrderSubmittedEvent{
		OrderID:  o.ID,
		DealerID: o.DealerID,
		Total:    o.Total,
		Lines:    s.eventLines(ctx, o),
	})
	if err != nil {
		return domain.Order{}, err
	}

	update := StatusUpdate{Subtotal: &o.Subtotal, Total: &o.Total}
	err = s.repo.Transition(ctx, o.ID, domain.StatusDraft, domain.StatusSubmitted,
		domain.EventTypeOrderSubmitted, payload, tracing.Traceparent(ctx), update)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			// Lost the race after reserving. The usual cause is a duplicate
			// submit of this same order: the winner owns the very ledger rows
			// we just touched, so releasing here would credit live reserved
			// stock back. Hand the stock back only when the order holds no
			// reservation anymore.
			cur, gerr := s.repo.Get(ctx, o.ID)
			switch {
			case gerr == nil && domain.ReservationHeld(cur.Status):
				s.log.Warn("duplicate submit lost the race", "order_id", o.ID, "status", cur.Status)
			case gerr != nil && !errors.Is(gerr, domain.ErrOrderNotFound):
				s.log.Error("order re-read after submit conflict failed", "order_id", o.ID, "err", gerr)
			default:
				if rerr := s.engine.Release(ctx, o.ID); rerr != nil {
					s.log.Error("release after submit conflict failed", "order_id", o.ID, "err", rerr)
				}
			}
			return domain.Order{}, &domain.InvalidTransitionError{From: o.Status, Event: domain.EventSubmit}
		}
		return domain.Order{}, err
	}

	o.Status = domain.StatusSubmitted
	s.cache.Set(ctx, o.ID, o.DealerID, o.Status)
	s.log.Info("order submitted", "order_id", o.ID, "dealer_id", o.DealerID, "total", o.Total)
	return o, nil
}

// Confirm moves a submitted order to pending_payment (staff only); the
// invoice is issued downstream from the confirmation event.
func (s *Service) Confirm(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	o, err := s.staffOrder(ctx, actor, orderID, domain.EventConfirm)
	if err != nil {
		return domain.Order{}, err
	}

	payload, err := json.Marshal(domain.OrderConfirmedEvent{OrderID: o.ID, DealerID: o.DealerID, Total: o.Total})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.transition(ctx, &o, domain.EventConfirm, domain.EventTypeOrderConfirmed, payload, StatusUpdate{}); err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order confirmed", "order_id", o.ID)
	return o, nil
}

// Cancel voids a submitted or pending order (staff only) and releases its
// reservation exactly once; re-cancelling is an invalid transition, so the
// release can never run twice.
func (s *Service) Cancel(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	o, err := s.staffOrder(ctx, actor, orderID, domain.EventCancel)
	if err != nil {
		return domain.Order{}, err
	}

	payload, err := json.Marshal(domain.OrderCancelledEvent{OrderID: o.ID, DealerID: o.DealerID})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.transition(ctx, &o, domain.EventCancel, domain.EventTypeOrderCancelled, payload, StatusUpdate{}); err != nil {
		return domain.Order{}, err
	}
	if err := s.engine.Release(ctx, o.ID); err != nil {
		// The ledger still holds the reservation; surface the failure so
		// staff can retry the release through a stock adjustment.
		s.log.Error("release on cancel failed", "order_id", o.ID, "err", err)
		return domain.Order{}, err
	}
	s.log.Info("order cancelled", "order_id", o.ID)
	return o, nil
}

// Ship obtains the tracking document synchronously and only then commits
// the transition. Provider failure aborts: the order stays pending_payment
// and inventory is untouched.
func (s *Service) Ship(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	o, err := s.staffOrder(ctx, actor, orderID, domain.EventShip)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Destination.IsZero() {
		return domain.Order{}, domain.ErrNoDestination
	}

	weight, err := s.billableWeight(ctx, o)
	if err != nil {
		return domain.Order{}, err
	}
	doc, err := s.shipping.CreateDocument(ctx, shipdom.DocumentRequest{
		OrderID:       o.ID,
		DealerID:      o.DealerID,
		CityRef:       o.Destination.CityRef,
		WarehouseRef:  o.Destination.WarehouseRef,
		WeightGrams:   weight,
		Description:   fmt.Sprintf("Order %s", o.ID),
		DeclaredValue: o.Total.StringFixed(2),
	})
	if err != nil {
		return domain.Order{}, &domain.ShippingDocumentError{OrderID: o.ID, Err: err}
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(domain.OrderShippedEvent{
		OrderID:        o.ID,
		DealerID:       o.DealerID,
		TrackingNumber: doc.TrackingNumber,
	})
	if err != nil {
		return domain.Order{}, err
	}
	update := StatusUpdate{
		TrackingNumber: &doc.TrackingNumber,
		ShippingDocRef: &doc.DocRef,
		ShippedAt:      &now,
	}
	if err := s.transition(ctx, &o, domain.EventShip, domain.EventTypeOrderShipped, payload, update); err != nil {
		s.log.Warn("shipping document created but transition lost", "order_id", o.ID, "ttn", doc.TrackingNumber)
		return domain.Order{}, err
	}

	o.TrackingNumber = doc.TrackingNumber
	o.ShippingDocRef = doc.DocRef
	o.ShippedAt = &now
	s.log.Info("order shipped", "order_id", o.ID, "ttn", doc.TrackingNumber, "weight_g", weight)
	return o, nil
}

// Delete removes a draft or cancelled order; only the owning dealer may.
// No stock effect: drafts were never reserved, cancelled orders already
// released.
func (s *Service) Delete(ctx context.Context, actor Actor, orderID string) error {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.DealerID != actor.DealerID {
		return domain.ErrForbidden
	}
	if !domain.Deletable(o.Status) {
		return &domain.InvalidTransitionError{From: o.Status, Event: domain.EventDelete}
	}
	if err := s.repo.Delete(ctx, o.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, o.ID)
	return nil
}

// Status returns just the lifecycle state for cheap polling, served from
// the cache when it still holds the order.
func (s *Service) Status(ctx context.Context, actor Actor, orderID string) (domain.Status, error) {
	if dealerID, st, ok := s.cache.Get(ctx, orderID); ok {
		if !actor.Staff && dealerID != actor.DealerID {
			return "", domain.ErrForbidden
		}
		return st, nil
	}
	o, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return "", err
	}
	s.cache.Set(ctx, o.ID, o.DealerID, o.Status)
	return o.Status, nil
}

// Get returns an order readable by the actor: its owner or any staff.
func (s *Service) Get(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !actor.Staff && o.DealerID != actor.DealerID {
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

// List returns the actor's order history; staff may filter across dealers
// by status.
func (s *Service) List(ctx context.Context, actor Actor, status domain.Status) ([]domain.Order, error) {
	if actor.Staff {
		return s.repo.ListByStatus(ctx, status)
	}
	return s.repo.ListByDealer(ctx, actor.DealerID)
}

// Label fetches the printable shipping label for a shipped order.
func (s *Service) Label(ctx context.Context, actor Actor, orderID string) ([]byte, error) {
	o, err := s.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.ShippingDocRef == "" {
		return nil, domain.ErrNoDestination
	}
	return s.shipping.FetchLabel(ctx, o.ShippingDocRef)
}

// staffOrder loads an order for a staff transition, enforcing role and
// transition validity up front.
func (s *Service) staffOrder(ctx context.Context, actor Actor, orderID string, ev domain.Event) (domain.Order, error) {
	if domain.StaffOnly(ev) && !actor.Staff {
		return domain.Order{}, domain.ErrForbidden
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !domain.CanTransition(o.Status, ev) {
		return domain.Order{}, &domain.InvalidTransitionError{From: o.Status, Event: ev}
	}
	return o, nil
}

// transition applies a validated event via the repository CAS and reflects
// the result on the in-memory order.
func (s *Service) transition(ctx context.Context, o *domain.Order, ev domain.Event,
	eventType string, payload []byte, update StatusUpdate) error {
	to, err := domain.Next(o.Status, ev)
	if err != nil {
		return err
	}
	err = s.repo.Transition(ctx, o.ID, o.Status, to, eventType, payload, tracing.Traceparent(ctx), update)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return &domain.InvalidTransitionError{From: o.Status, Event: ev}
		}
		return err
	}
	o.Status = to
	s.cache.Set(ctx, o.ID, o.DealerID, to)
	return nil
}

// eventLines decorates the payload lines with display labels for the
// notification pipeline. Lookups are best effort: the product id stands in
// when the catalog cannot serve one.
func (s *Service) eventLines(ctx context.Context, o domain.Order) []domain.EventLine {
	lines := o.EventLines()
	for i := range lines {
		p, err := s.catalog.ProductWithVariants(ctx, lines[i].ProductID)
		if err != nil {
			continue
		}
		lines[i].Label = p.NameWithWeight()
	}
	return lines
}

// billableWeight loads unit weights for every line and folds them.
func (s *Service) billableWeight(ctx context.Context, o domain.Order) (int, error) {
	lines := make([]shipdom.WeightedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		p, err := s.catalog.ProductWithVariants(ctx, l.ProductID)
		if err != nil {
			return 0, err
		}
		wl := shipdom.WeightedLine{Qty: l.Qty, ProductGrams: p.WeightGrams}
		if l.VariantID != "" {
			for _, v := range p.Variants {
				if v.ID == l.VariantID {
					wl.VariantGrams = v.WeightGrams
					break
				}
			}
		}
		lines = append(lines, wl)
	}
	return shipdom.BillableWeightGrams(lines), nil
}
