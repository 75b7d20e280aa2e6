// Package importer implements the order-sheet reconciliation pipeline.
//
// An operator uploads a tabular file of SKU and quantity pairs for a
// customer. The pipeline parses the file into candidate rows, enriches each
// row against live catalog inventory, and classifies its fulfillment outcome.
// The resulting preview is shown to the operator; on confirmation the
// includable rows become a single order-creation call and a history record.
//
// This package has no transport dependencies. The catalog, the
// order-creation service, and the history store are capability interfaces
// so the pipeline can be exercised with fakes.
package importer

import (
	"context"
	"time"
)

// CandidateRow is one parsed input line: a SKU and the quantity the
// operator asked for. Rows that fail parsing never become candidates.
type CandidateRow struct {
	SKU      string
	Quantity int
}

// RowStatus classifies the fulfillment outcome of a reconciled row.
type RowStatus string

const (
	// StatusOK means the full requested quantity is available.
	StatusOK RowStatus = "ok"

	// StatusPartial means only part of the requested quantity is available.
	StatusPartial RowStatus = "partial"

	// StatusNoStock means the variant exists but nothing is available.
	StatusNoStock RowStatus = "no_stock"

	// StatusSKUNotFound means no catalog entry matches the SKU.
	StatusSKUNotFound RowStatus = "sku_not_found"

	// StatusLookupError means the catalog lookup itself failed, so
	// availability could not be determined.
	StatusLookupError RowStatus = "lookup_error"
)

// ReconciledRow is a candidate row enriched with catalog data. It is a
// point-in-time snapshot: confirmation trusts it verbatim and never
// re-checks inventory.
type ReconciledRow struct {
	SKU               string    `json:"sku"`
	QuantityRequested int       `json:"quantityRequested"`
	ProductName       string    `json:"productName"`
	AvailableQuantity int       `json:"availableQuantity"`
	FulfilledQuantity int       `json:"fulfilledQuantity"`
	Status            RowStatus `json:"status"`
	Exists            bool      `json:"exists"`
	VariantID         string    `json:"variantId,omitempty"`
}

// Includable reports whether the row is eligible to appear on the
// submitted order: it must exist, carry a variant reference, and have a
// positive fulfilled quantity.
func (r ReconciledRow) Includable() bool {
	return r.Exists && r.VariantID != "" && r.FulfilledQuantity > 0
}

// PreviewResult is the pipeline's output for one upload. It lives only for
// the preview-confirm round trip and is never persisted server-side; the
// caller carries it forward unchanged.
type PreviewResult struct {
	CustomerName string          `json:"customerName"`
	CustomerID   string          `json:"customerId"`
	Rows         []ReconciledRow `json:"rows"`
}

// InventoryLevel is the available quantity at a single location.
type InventoryLevel struct {
	LocationID string
	Available  int
}

// Variant is a sellable catalog entry matched by SKU.
type Variant struct {
	ID           string
	DisplayName  string
	ProductTitle string
	Levels       []InventoryLevel
}

// VariantFinder looks up a sellable variant by exact SKU match.
// A nil Variant with a nil error means no catalog entry matched.
type VariantFinder interface {
	FindVariantBySKU(ctx context.Context, sku string) (*Variant, error)
}

// LineItem is one order line: a variant and the quantity to place.
type LineItem struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the payload submitted to the order-creation service.
// It is built deterministically from the includable subset of a preview.
type OrderRequest struct {
	CustomerID    string     `json:"customerId"`
	LineItems     []LineItem `json:"lineItems"`
	Note          string     `json:"note"`
	TotalQuantity int        `json:"totalQuantity"`
}

// CreatedOrder describes a successfully created order.
type CreatedOrder struct {
	ID        string // opaque order identifier
	DisplayID string // numeric legacy identifier for operator-facing links
	Label     string // human-meaningful label, e.g. "#D123"
}

// OrderCreator submits a consolidated order to the external
// order-creation service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*CreatedOrder, error)
}

// HistoryRecord is durable evidence of a completed order creation.
// Written at most once per successful order; never updated or deleted.
type HistoryRecord struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customerId"`
	CustomerName   string    `json:"customerName"`
	OrderID        string    `json:"orderId"`
	OrderDisplayID string    `json:"orderDisplayId"`
	OrderLabel     string    `json:"orderLabel"`
	TotalQuantity  int       `json:"totalQuantity"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HistoryAppender appends a record to the durable order history.
type HistoryAppender interface {
	Append(ctx context.Context, rec HistoryRecord) error
}

// ConfirmResult is the outcome of a successful confirmation.
type ConfirmResult struct {
	OrderID        string `json:"orderId"`
	OrderDisplayID string `json:"orderDisplayId"`
	OrderLabel     string `json:"orderLabel"`
	TotalQuantity  int    `json:"totalQuantity"`
}
