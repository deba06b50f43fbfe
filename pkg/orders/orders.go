// Package orders owns the order-line mutation lifecycle: pricing before the
// write, total maintenance around it, and per-order serialization of the
// whole sequence.
package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderdesk/pkg/catalog"
	"orderdesk/pkg/logger"
	"orderdesk/pkg/pricing"
)

// MutationKind identifies which write is in flight.
type MutationKind int

const (
	Insert MutationKind = iota
	Update
	Delete
)

// Mutation is the record a lifecycle hook operates on. Hooks may rewrite
// Line fields before the write is committed.
type Mutation struct {
	Kind MutationKind
	Line *catalog.OrderLine
}

// Hook is one step of the mutation lifecycle. Hooks run in registration
// order; an error aborts the mutation.
type Hook func(ctx context.Context, store catalog.Store, m *Mutation) error

// Service coordinates order-line writes. Each mutation runs its full
// lifecycle (before hooks, write, after hooks) inside the parent order's
// critical section, so two writers on the same order never interleave.
type Service struct {
	store catalog.Store
	calc  *pricing.Calculator
	locks *orderLocks

	beforeInsert []Hook
	afterInsert  []Hook
	beforeUpdate []Hook
	afterUpdate  []Hook
	beforeDelete []Hook
}

// NewService wires the standard lifecycle: price snapshot before insert and
// update, total recompute after insert and update, and total recompute
// excluding the row before delete.
func NewService(store catalog.Store) *Service {
	s := &Service{
		store: store,
		calc:  pricing.New(store),
		locks: newOrderLocks(),
	}
	s.beforeInsert = append(s.beforeInsert, s.priceHook)
	s.beforeUpdate = append(s.beforeUpdate, s.priceHook)
	s.afterInsert = append(s.afterInsert, s.totalHook)
	s.afterUpdate = append(s.afterUpdate, s.totalHook)
	s.beforeDelete = append(s.beforeDelete, s.deleteTotalHook)
	return s
}

// priceHook freezes quantity times the product's current unit price onto the
// line. Missing product or zero quantity prices the line at zero.
func (s *Service) priceHook(ctx context.Context, store catalog.Store, m *Mutation) error {
	price, err := s.calc.LinePrice(ctx, m.Line.Quantity, m.Line.Product)
	if err != nil {
		return fmt.Errorf("compute line price: %w", err)
	}
	m.Line.Price = price
	return nil
}

// totalHook re-aggregates the parent order's total over all current lines,
// including the one just written. A vanished parent is logged and ignored.
func (s *Service) totalHook(ctx context.Context, store catalog.Store, m *Mutation) error {
	return s.recompute(ctx, m.Line.Order, 0)
}

// deleteTotalHook re-aggregates the parent order's total excluding the line
// about to be removed, so its price is not counted as still present.
func (s *Service) deleteTotalHook(ctx context.Context, store catalog.Store, m *Mutation) error {
	return s.recompute(ctx, m.Line.Order, m.Line.ID)
}

func (s *Service) recompute(ctx context.Context, orderID, excludeLineID int64) error {
	err := s.store.RecomputeOrderTotal(ctx, orderID, excludeLineID)
	if errors.Is(err, catalog.ErrNotFound) {
		logger.Log.Warn("order total recompute skipped: order not found",
			zap.Int64("order", orderID))
		return nil
	}
	return err
}

// AddLine inserts a line and returns it with its assigned ID and snapshot
// price. The parent order must exist.
func (s *Service) AddLine(ctx context.Context, line catalog.OrderLine) (catalog.OrderLine, error) {
	if _, err := s.store.Order(ctx, line.Order); err != nil {
		return catalog.OrderLine{}, fmt.Errorf("resolve order %d: %w", line.Order, err)
	}
	unlock := s.locks.lock(line.Order)
	defer unlock()

	m := &Mutation{Kind: Insert, Line: &line}
	if err := runHooks(ctx, s.store, s.beforeInsert, m); err != nil {
		return catalog.OrderLine{}, err
	}
	if err := s.store.InsertLine(ctx, m.Line); err != nil {
		return catalog.OrderLine{}, fmt.Errorf("insert line: %w", err)
	}
	if err := runHooks(ctx, s.store, s.afterInsert, m); err != nil {
		return catalog.OrderLine{}, err
	}
	return *m.Line, nil
}

// UpdateLine rewrites a line's product and quantity. The line stays on the
// order it was created on; the stored parent wins over whatever the caller
// set, which keeps the critical section to a single order.
func (s *Service) UpdateLine(ctx context.Context, line catalog.OrderLine) (catalog.OrderLine, error) {
	existing, err := s.store.Line(ctx, line.ID)
	if err != nil {
		return catalog.OrderLine{}, fmt.Errorf("resolve line %d: %w", line.ID, err)
	}
	line.Order = existing.Order
	unlock := s.locks.lock(line.Order)
	defer unlock()

	m := &Mutation{Kind: Update, Line: &line}
	if err := runHooks(ctx, s.store, s.beforeUpdate, m); err != nil {
		return catalog.OrderLine{}, err
	}
	if err := s.store.UpdateLine(ctx, *m.Line); err != nil {
		return catalog.OrderLine{}, fmt.Errorf("update line: %w", err)
	}
	if err := runHooks(ctx, s.store, s.afterUpdate, m); err != nil {
		return catalog.OrderLine{}, err
	}
	return *m.Line, nil
}

// DeleteLine removes a line, first recomputing the parent total without it.
func (s *Service) DeleteLine(ctx context.Context, id int64) error {
	line, err := s.store.Line(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve line %d: %w", id, err)
	}
	unlock := s.locks.lock(line.Order)
	defer unlock()

	m := &Mutation{Kind: Delete, Line: &line}
	if err := runHooks(ctx, s.store, s.beforeDelete, m); err != nil {
		return err
	}
	if err := s.store.DeleteLine(ctx, id); err != nil {
		return fmt.Errorf("delete line: %w", err)
	}
	return nil
}

// Order fetches an order together with its lines.
func (s *Service) Order(ctx context.Context, id int64) (catalog.Order, []catalog.OrderLine, error) {
	o, err := s.store.Order(ctx, id)
	if err != nil {
		return catalog.Order{}, nil, err
	}
	lines, err := s.store.LinesByOrder(ctx, id)
	if err != nil {
		return catalog.Order{}, nil, err
	}
	return o, lines, nil
}

// UsedProducts returns the product keys already referenced by the order's
// lines, skipping excludeLineID when non-zero. Search callers pass these as
// the exclusion set so one product cannot be picked twice on an order.
func (s *Service) UsedProducts(ctx context.Context, orderID, excludeLineID int64) ([]int64, error) {
	lines, err := s.store.LinesByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var used []int64
	for _, l := range lines {
		if l.ID == excludeLineID {
			continue
		}
		used = append(used, l.Product)
	}
	return used, nil
}

func runHooks(ctx context.Context, store catalog.Store, hooks []Hook, m *Mutation) error {
	for _, h := range hooks {
		if err := h(ctx, store, m); err != nil {
			return err
		}
	}
	return nil
}
