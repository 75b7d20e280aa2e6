package importer

// workflow.go drives the two-phase preview/confirm workflow.
//
// Preview parses and reconciles an upload; it is read-only and its result
// is returned to the caller. Confirm receives that result's rows back
// verbatim, filters them through the inclusion predicate, submits one
// consolidated order, and appends a history record.
//
// The workflow holds no state between the two phases. The caller carries
// the PreviewResult forward unchanged, so confirming the same snapshot
// twice creates two orders; there is no server-side deduplication.

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orderdesk/orderdesk/internal/logging"
)

// Service wires the pipeline to its external collaborators.
type Service struct {
	reconciler *Reconciler
	orders     OrderCreator
	history    HistoryAppender
	limiter    *Limiter
}

// NewService creates the pipeline service. The limiter bounds concurrent
// preview runs; pass nil to disable limiting (tests).
func NewService(finder VariantFinder, orders OrderCreator, history HistoryAppender, limiter *Limiter, lookupConcurrency int) *Service {
	return &Service{
		reconciler: NewReconciler(finder, lookupConcurrency),
		orders:     orders,
		history:    history,
		limiter:    limiter,
	}
}

// Preview parses the uploaded grid and reconciles every candidate row
// against the catalog. It performs no writes anywhere.
//
// Returns the validation errors of ParseGrid unchanged; a row-level lookup
// failure surfaces as a row status, never as an error.
func (s *Service) Preview(ctx context.Context, customerName, customerID string, grid [][]string) (*PreviewResult, error) {
	if customerName == "" || customerID == "" {
		return nil, ErrMissingCustomer
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		defer s.limiter.Release()
	}

	rows, err := ParseGrid(grid)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reconciled := s.reconciler.Reconcile(ctx, rows)

	logging.FromContext(ctx).Info("preview reconciled",
		"customer_id", customerID,
		"rows", len(reconciled),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &PreviewResult{
		CustomerName: customerName,
		CustomerID:   customerID,
		Rows:         reconciled,
	}, nil
}

// Confirm turns a reviewed row snapshot into one order-creation call and a
// history record. The snapshot is trusted verbatim; inventory is not
// re-checked.
//
// Returns ErrNothingToOrder before any external call when no row is
// includable. An order-creation failure aborts the confirm with an
// ExternalServiceError. A history write failure after a created order is
// logged and swallowed: the order exists, and history is best-effort audit.
func (s *Service) Confirm(ctx context.Context, customerName, customerID string, rows []ReconciledRow) (*ConfirmResult, error) {
	if customerName == "" || customerID == "" {
		return nil, ErrMissingCustomer
	}

	req, ok := BuildOrderRequest(customerName, customerID, rows)
	if !ok {
		return nil, ErrNothingToOrder
	}

	created, err := s.orders.CreateOrder(ctx, req)
	if err != nil {
		return nil, &ExternalServiceError{Op: "order create", Err: err}
	}

	logger := logging.FromContext(ctx)
	logger.Info("order created",
		"customer_id", customerID,
		"order_id", created.ID,
		"order_label", created.Label,
		"total_quantity", req.TotalQuantity,
	)

	rec := HistoryRecord{
		ID:             uuid.NewString(),
		CustomerID:     customerID,
		CustomerName:   customerName,
		OrderID:        created.ID,
		OrderDisplayID: created.DisplayID,
		OrderLabel:     created.Label,
		TotalQuantity:  req.TotalQuantity,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.history.Append(ctx, rec); err != nil {
		// The order is already created; history is audit, not truth.
		logger.Warn("history append failed",
			"order_id", created.ID,
			"error", err,
		)
	}

	return &ConfirmResult{
		OrderID:        created.ID,
		OrderDisplayID: created.DisplayID,
		OrderLabel:     created.Label,
		TotalQuantity:  req.TotalQuantity,
	}, nil
}

// BuildOrderRequest assembles the order-creation payload from the
// includable subset of a reviewed row set. The second return value is
// false when no row is includable.
//
// The build is deterministic: the same snapshot always yields the same
// request, note included.
func BuildOrderRequest(customerName, customerID string, rows []ReconciledRow) (OrderRequest, bool) {
	var items []LineItem
	total := 0
	for _, row := range rows {
		if !row.Includable() {
			continue
		}
		items = append(items, LineItem{
			VariantID: row.VariantID,
			Quantity:  row.FulfilledQuantity,
		})
		total += row.FulfilledQuantity
	}

	if len(items) == 0 {
		return OrderRequest{}, false
	}

	return OrderRequest{
		CustomerID:    customerID,
		LineItems:     items,
		Note:          fmt.Sprintf("Bulk order import for %s (customer %s)", customerName, customerID),
		TotalQuantity: total,
	}, true
}
