package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/orderdesk/orderdesk/internal/importer"
)

// capturedRequest records what the fake Admin API received.
type capturedRequest struct {
	token     string
	query     string
	variables map[string]any
}

func newFakeAdminAPI(t *testing.T, status int, responseBody string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if captured != nil {
			captured.token = r.Header.Get("X-Shopify-Access-Token")
			var req struct {
				Query     string         `json:"query"`
				Variables map[string]any `json:"variables"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			captured.query = req.Query
			captured.variables = req.Variables
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, responseBody)
	}))
}

func variantResponse(id, sku, displayName, productTitle string, levels ...int) string {
	levelEdges := make([]string, len(levels))
	for i, available := range levels {
		levelEdges[i] = fmt.Sprintf(`{"node":{"location":{"id":"gid://shopify/Location/%d"},"quantities":[{"name":"available","quantity":%d}]}}`, i+1, available)
	}
	return fmt.Sprintf(`{"data":{"productVariants":{"edges":[{"node":{
		"id":%q,"sku":%q,"displayName":%q,
		"product":{"title":%q},
		"inventoryItem":{"inventoryLevels":{"edges":[%s]}}
	}}]}}}`, id, sku, displayName, productTitle, strings.Join(levelEdges, ","))
}

func TestFindVariantBySKU(t *testing.T) {
	var captured capturedRequest
	srv := newFakeAdminAPI(t, http.StatusOK,
		variantResponse("gid://shopify/ProductVariant/42", "ABC123", "Widget - Default Title", "Widget", 7, 3),
		&captured)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	variant, err := client.FindVariantBySKU(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("FindVariantBySKU: %v", err)
	}
	if variant == nil {
		t.Fatal("variant = nil, want catalog entry")
	}

	if variant.ID != "gid://shopify/ProductVariant/42" {
		t.Errorf("ID = %q", variant.ID)
	}
	if variant.DisplayName != "Widget - Default Title" {
		t.Errorf("DisplayName = %q", variant.DisplayName)
	}
	if variant.ProductTitle != "Widget" {
		t.Errorf("ProductTitle = %q", variant.ProductTitle)
	}
	if len(variant.Levels) != 2 {
		t.Fatalf("len(Levels) = %d, want 2", len(variant.Levels))
	}
	if variant.Levels[0].Available != 7 || variant.Levels[1].Available != 3 {
		t.Errorf("Levels = %+v, want available 7 and 3", variant.Levels)
	}

	if captured.token != "test-token" {
		t.Errorf("access token header = %q", captured.token)
	}
	if got := captured.variables["query"]; got != `sku:"ABC123"` {
		t.Errorf("query variable = %v", got)
	}
	if got := captured.variables["locations"]; got != float64(20) {
		t.Errorf("locations variable = %v", got)
	}
}

func TestFindVariantBySKUNotFound(t *testing.T) {
	srv := newFakeAdminAPI(t, http.StatusOK, `{"data":{"productVariants":{"edges":[]}}}`, nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	variant, err := client.FindVariantBySKU(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("FindVariantBySKU: %v", err)
	}
	if variant != nil {
		t.Errorf("variant = %+v, want nil for unknown sku", variant)
	}
}

func TestFindVariantBySKURejectsLooseMatch(t *testing.T) {
	// The search API can return prefix matches; those are not the SKU asked for.
	srv := newFakeAdminAPI(t, http.StatusOK,
		variantResponse("gid://shopify/ProductVariant/42", "ABC123-XL", "Widget XL", "Widget", 5),
		nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	variant, err := client.FindVariantBySKU(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("FindVariantBySKU: %v", err)
	}
	if variant != nil {
		t.Errorf("variant = %+v, want nil for loose match", variant)
	}
}

func TestFindVariantBySKUHTTPError(t *testing.T) {
	srv := newFakeAdminAPI(t, http.StatusTooManyRequests, `{"errors":"Throttled"}`, nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	_, err := client.FindVariantBySKU(context.Background(), "ABC123")
	if err == nil {
		t.Fatal("expected error on HTTP 429")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Throttled") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestFindVariantBySKUGraphQLError(t *testing.T) {
	srv := newFakeAdminAPI(t, http.StatusOK, `{"errors":[{"message":"Field 'bogus' doesn't exist"}]}`, nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	_, err := client.FindVariantBySKU(context.Background(), "ABC123")
	if err == nil {
		t.Fatal("expected error on graphql errors")
	}
	if !strings.Contains(err.Error(), "Field 'bogus'") {
		t.Errorf("error = %v, want graphql message", err)
	}
}

func TestCreateOrder(t *testing.T) {
	var captured capturedRequest
	srv := newFakeAdminAPI(t, http.StatusOK,
		`{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://shopify/DraftOrder/99","legacyResourceId":"99","name":"#D99"},"userErrors":[]}}}`,
		&captured)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	order, err := client.CreateOrder(context.Background(), importer.OrderRequest{
		CustomerID: "777",
		LineItems: []importer.LineItem{
			{VariantID: "gid://shopify/ProductVariant/42", Quantity: 3},
		},
		Note:          "Bulk order import for Acme (customer 777)",
		TotalQuantity: 3,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if order.ID != "gid://shopify/DraftOrder/99" {
		t.Errorf("ID = %q", order.ID)
	}
	if order.DisplayID != "99" {
		t.Errorf("DisplayID = %q", order.DisplayID)
	}
	if order.Label != "#D99" {
		t.Errorf("Label = %q", order.Label)
	}

	input, ok := captured.variables["input"].(map[string]any)
	if !ok {
		t.Fatalf("input variable missing: %v", captured.variables)
	}
	if input["note"] != "Bulk order import for Acme (customer 777)" {
		t.Errorf("note = %v", input["note"])
	}
	entity, ok := input["purchasingEntity"].(map[string]any)
	if !ok || entity["customerId"] != "gid://shopify/Customer/777" {
		t.Errorf("purchasingEntity = %v, want customer GID", input["purchasingEntity"])
	}
	items, ok := input["lineItems"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("lineItems = %v, want one item", input["lineItems"])
	}
	item := items[0].(map[string]any)
	if item["variantId"] != "gid://shopify/ProductVariant/42" || item["quantity"] != float64(3) {
		t.Errorf("line item = %v", item)
	}
}

func TestCreateOrderUserErrors(t *testing.T) {
	srv := newFakeAdminAPI(t, http.StatusOK,
		`{"data":{"draftOrderCreate":{"draftOrder":null,"userErrors":[{"field":["input","lineItems"],"message":"Variant is invalid"}]}}}`,
		nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	_, err := client.CreateOrder(context.Background(), importer.OrderRequest{
		CustomerID: "777",
		LineItems:  []importer.LineItem{{VariantID: "gid://shopify/ProductVariant/1", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected error on userErrors")
	}
	if !strings.Contains(err.Error(), "Variant is invalid") {
		t.Errorf("error = %v, want user error message", err)
	}
}

func TestCreateOrderMissingDescriptor(t *testing.T) {
	srv := newFakeAdminAPI(t, http.StatusOK,
		`{"data":{"draftOrderCreate":{"draftOrder":null,"userErrors":[]}}}`,
		nil)
	defer srv.Close()

	client := NewClientWithEndpoint(srv.URL, "test-token", 20)
	_, err := client.CreateOrder(context.Background(), importer.OrderRequest{
		CustomerID: "777",
		LineItems:  []importer.LineItem{{VariantID: "gid://shopify/ProductVariant/1", Quantity: 1}},
	})
	if err == nil {
		t.Fatal("expected error when order descriptor missing")
	}
}

func TestCustomerGID(t *testing.T) {
	if got := customerGID("123"); got != "gid://shopify/Customer/123" {
		t.Errorf("customerGID(123) = %q", got)
	}
	if got := customerGID("gid://shopify/Customer/123"); got != "gid://shopify/Customer/123" {
		t.Errorf("customerGID passthrough = %q", got)
	}
}
