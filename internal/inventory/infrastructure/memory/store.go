// Package memory holds an in-process inventory store with the same
// atomicity contract as the postgres one. It backs unit tests and local
// runs without a database.
package memory

import (
	"context"
	"sync"

	"github.com/HurmakR/herabuna-b2b/internal/inventory/domain"
)

type reservation struct {
	qty      int
	released bool
}

type Store struct {
	mu     sync.Mutex
	stock  map[domain.UnitRef]int
	ledger map[string]map[domain.UnitRef]*reservation
}

func NewStore() *Store {
	return &Store{
		stock:  make(map[domain.UnitRef]int),
		ledger: make(map[string]map[domain.UnitRef]*reservation),
	}
}

// SetStock seeds or overwrites the on-hand quantity of a unit.
func (s *Store) SetStock(unit domain.UnitRef, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[unit] = qty
}

func (s *Store) Available(_ context.Context, unit domain.UnitRef) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[unit], nil
}

func (s *Store) Adjust(_ context.Context, unit domain.UnitRef, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := s.stock[unit]
	if have+delta < 0 {
		return &domain.InsufficientStockError{Unit: unit, Requested: -delta, Available: have}
	}
	s.stock[unit] = have + delta
	return nil
}

func (s *Store) ReserveAll(_ context.Context, orderID string, lines []domain.LineQty) ([]domain.Shortage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.ledger[orderID]

	// Validate every line first so all shortages are reported and nothing
	// is applied on rejection.
	var shortages []domain.Shortage
	for _, l := range lines {
		if r, ok := held[l.Unit]; ok && !r.released {
			continue // already reserved for this order
		}
		if have := s.stock[l.Unit]; have < l.Qty {
			shortages = append(shortages, domain.Shortage{Unit: l.Unit, Requested: l.Qty, Available: have})
		}
	}
	if len(shortages) > 0 {
		return shortages, nil
	}

	if held == nil {
		held = make(map[domain.UnitRef]*reservation, len(lines))
		s.ledger[orderID] = held
	}
	for _, l := range lines {
		if r, ok := held[l.Unit]; ok && !r.released {
			continue
		}
		s.stock[l.Unit] -= l.Qty
		held[l.Unit] = &reservation{qty: l.Qty}
	}
	return nil, nil
}

func (s *Store) ReleaseAll(_ context.Context, orderID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for unit, r := range s.ledger[orderID] {
		if r.released {
			continue
		}
		s.stock[unit] += r.qty
		r.released = true
		released++
	}
	return released, nil
}
