package importer

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/orderdesk/orderdesk/internal/logging"
)

// defaultTitleSuffix is boilerplate Shopify appends to the display name of
// single-variant products; it carries no information for the operator.
const defaultTitleSuffix = "- Default Title"

// unresolvedProductName is shown for rows whose SKU matched nothing.
const unresolvedProductName = "Unknown product"

// Reconciler enriches candidate rows against the catalog and classifies
// each row's fulfillment outcome.
type Reconciler struct {
	finder      VariantFinder
	concurrency int
}

// NewReconciler creates a reconciler performing at most concurrency
// catalog lookups in parallel. A non-positive concurrency means sequential.
func NewReconciler(finder VariantFinder, concurrency int) *Reconciler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reconciler{finder: finder, concurrency: concurrency}
}

// Reconcile looks up every candidate row and returns the same-length
// sequence of reconciled rows in input order.
//
// Rows are independent: a single lookup failure degrades that row to
// StatusLookupError and never aborts the rest of the batch. Lookups fan
// out with bounded concurrency; results land in an index-addressed slice
// so output order always matches input order.
func (r *Reconciler) Reconcile(ctx context.Context, rows []CandidateRow) []ReconciledRow {
	out := make([]ReconciledRow, len(rows))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, row := range rows {
		g.Go(func() error {
			out[i] = r.reconcileRow(ctx, row)
			return nil
		})
	}

	// Workers never return errors; failures are per-row statuses.
	_ = g.Wait()
	return out
}

// reconcileRow enriches a single candidate row.
func (r *Reconciler) reconcileRow(ctx context.Context, row CandidateRow) ReconciledRow {
	variant, err := r.finder.FindVariantBySKU(ctx, row.SKU)
	if err != nil {
		logging.FromContext(ctx).Warn("catalog lookup failed",
			"sku", row.SKU,
			"error", err,
		)
		return unresolvedRow(row, StatusLookupError)
	}
	if variant == nil {
		return unresolvedRow(row, StatusSKUNotFound)
	}

	available := 0
	for _, level := range variant.Levels {
		available += level.Available
	}

	rec := ReconciledRow{
		SKU:               row.SKU,
		QuantityRequested: row.Quantity,
		ProductName:       productDisplayName(variant, row.SKU),
		AvailableQuantity: available,
		Exists:            true,
		VariantID:         variant.ID,
	}

	switch {
	case available <= 0:
		rec.Status = StatusNoStock
		rec.FulfilledQuantity = 0
	case row.Quantity > available:
		rec.Status = StatusPartial
		rec.FulfilledQuantity = available
	default:
		rec.Status = StatusOK
		rec.FulfilledQuantity = row.Quantity
	}
	return rec
}

// unresolvedRow builds the reconciled form of a row that could not be
// matched to the catalog, for either of the two unresolved statuses.
func unresolvedRow(row CandidateRow, status RowStatus) ReconciledRow {
	return ReconciledRow{
		SKU:               row.SKU,
		QuantityRequested: row.Quantity,
		ProductName:       unresolvedProductName,
		AvailableQuantity: 0,
		FulfilledQuantity: 0,
		Status:            status,
		Exists:            false,
	}
}

// productDisplayName picks the operator-facing name for a matched variant.
// Shopify's "- Default Title" boilerplate is stripped; a variant with no
// usable name falls back to a synthesized "SKU <sku>" label.
func productDisplayName(variant *Variant, sku string) string {
	name := strings.TrimSpace(variant.DisplayName)
	if name == "" {
		name = strings.TrimSpace(variant.ProductTitle)
	}
	if name == "" {
		return "SKU " + sku
	}

	name = strings.TrimSpace(strings.TrimSuffix(name, defaultTitleSuffix))
	if name == "" {
		return "SKU " + sku
	}
	return name
}
