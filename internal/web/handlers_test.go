package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/importer"
)

// fakeFinder serves catalog lookups from a fixed map.
type fakeFinder struct {
	variants map[string]*importer.Variant
}

func (f *fakeFinder) FindVariantBySKU(_ context.Context, sku string) (*importer.Variant, error) {
	return f.variants[sku], nil
}

// fakeOrders records order requests and returns a canned order.
type fakeOrders struct {
	requests []importer.OrderRequest
	err      error
}

func (f *fakeOrders) CreateOrder(_ context.Context, req importer.OrderRequest) (*importer.CreatedOrder, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &importer.CreatedOrder{
		ID:        "gid://shopify/DraftOrder/55",
		DisplayID: "55",
		Label:     "#D55",
	}, nil
}

// fakeHistory implements both the append and read sides in memory.
type fakeHistory struct {
	records []importer.HistoryRecord
	err     error
}

func (f *fakeHistory) Append(_ context.Context, rec importer.HistoryRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]importer.HistoryRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.IdleTimeout = time.Minute
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Upload.Timeout = 30 * time.Second
	cfg.Upload.LookupConcurrency = 2
	return cfg
}

func newTestServer(t *testing.T, finder *fakeFinder, orders *fakeOrders, history *fakeHistory) *Server {
	t.Helper()
	if finder == nil {
		finder = &fakeFinder{variants: map[string]*importer.Variant{}}
	}
	if orders == nil {
		orders = &fakeOrders{}
	}
	service := importer.NewService(finder, orders, history, nil, 2)
	var reader HistoryReader
	if history != nil {
		reader = history
	}
	return NewServer(service, reader, testConfig())
}

// multipartBody builds a multipart form with the given fields and an
// optional file part named "file".
func multipartBody(t *testing.T, fields map[string]string, filename, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, fileContent); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postOrders(srv *Server, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestOrdersPreview(t *testing.T) {
	finder := &fakeFinder{variants: map[string]*importer.Variant{
		"ABC123": {
			ID:           "gid://shopify/ProductVariant/1",
			DisplayName:  "Widget - Default Title",
			ProductTitle: "Widget",
			Levels:       []importer.InventoryLevel{{LocationID: "loc1", Available: 10}},
		},
	}}
	srv := newTestServer(t, finder, nil, &fakeHistory{})

	body, contentType := multipartBody(t, map[string]string{
		"intent":       "process",
		"customerId":   "777",
		"customerName": "Acme",
	}, "orders.csv", "SKU,Quantity\nABC123,5\nMISSING,2\n")

	rec := postOrders(srv, body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if resp.CustomerID != "777" || resp.CustomerName != "Acme" {
		t.Errorf("customer = %s/%s", resp.CustomerID, resp.CustomerName)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(resp.Rows))
	}
	if resp.Rows[0].Status != importer.StatusOK || resp.Rows[0].ProductName != "Widget" {
		t.Errorf("row 0 = %+v", resp.Rows[0])
	}
	if resp.Rows[1].Status != importer.StatusSKUNotFound {
		t.Errorf("row 1 status = %s", resp.Rows[1].Status)
	}
}

func TestOrdersPreviewValidation(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  string
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing customer",
			fields:   map[string]string{"intent": "process", "customerName": "Acme"},
			filename: "orders.csv",
			content:  "SKU,Quantity\nABC123,5\n",
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL004",
		},
		{
			name:     "bad intent",
			fields:   map[string]string{"intent": "delete", "customerId": "777", "customerName": "Acme"},
			filename: "orders.csv",
			content:  "SKU,Quantity\nABC123,5\n",
			wantCode: http.StatusBadRequest,
			wantErr:  "ERR000",
		},
		{
			name:     "missing file",
			fields:   map[string]string{"intent": "process", "customerId": "777", "customerName": "Acme"},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL002",
		},
		{
			name:     "missing columns",
			fields:   map[string]string{"intent": "process", "customerId": "777", "customerName": "Acme"},
			filename: "orders.csv",
			content:  "Item,Count\nABC123,5\n",
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil, nil, &fakeHistory{})
			body, contentType := multipartBody(t, tt.fields, tt.filename, tt.content)
			rec := postOrders(srv, body, contentType)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if resp := decodeError(t, rec); resp.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", resp.Code, tt.wantErr)
			}
		})
	}
}

func confirmRows() string {
	rows := []importer.ReconciledRow{
		{
			SKU:               "ABC123",
			QuantityRequested: 5,
			ProductName:       "Widget",
			AvailableQuantity: 10,
			FulfilledQuantity: 5,
			Status:            importer.StatusOK,
			Exists:            true,
			VariantID:         "gid://shopify/ProductVariant/1",
		},
		{
			SKU:               "MISSING",
			QuantityRequested: 2,
			ProductName:       "Unknown product",
			Status:            importer.StatusSKUNotFound,
		},
	}
	b, _ := json.Marshal(rows)
	return string(b)
}

func TestOrdersConfirm(t *testing.T) {
	orders := &fakeOrders{}
	history := &fakeHistory{}
	srv := newTestServer(t, nil, orders, history)

	body, contentType := multipartBody(t, map[string]string{
		"intent":       "create",
		"customerId":   "777",
		"customerName": "Acme",
		"rows":         confirmRows(),
	}, "", "")

	rec := postOrders(srv, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp confirmResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode confirm: %v", err)
	}
	if resp.OrderID != "gid://shopify/DraftOrder/55" || resp.OrderLabel != "#D55" {
		t.Errorf("order = %+v", resp)
	}
	if resp.TotalQuantity != 5 {
		t.Errorf("total = %d, want 5", resp.TotalQuantity)
	}

	if len(orders.requests) != 1 {
		t.Fatalf("order calls = %d, want 1", len(orders.requests))
	}
	req := orders.requests[0]
	if len(req.LineItems) != 1 || req.LineItems[0].VariantID != "gid://shopify/ProductVariant/1" {
		t.Errorf("line items = %+v", req.LineItems)
	}

	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	if history.records[0].OrderDisplayID != "55" {
		t.Errorf("history record = %+v", history.records[0])
	}
}

func TestOrdersConfirmNothingToOrder(t *testing.T) {
	orders := &fakeOrders{}
	srv := newTestServer(t, nil, orders, &fakeHistory{})

	rows := `[{"sku":"MISSING","quantityRequested":2,"status":"sku_not_found"}]`
	body, contentType := multipartBody(t, map[string]string{
		"intent":       "create",
		"customerId":   "777",
		"customerName": "Acme",
		"rows":         rows,
	}, "", "")

	rec := postOrders(srv, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "ORD001" {
		t.Errorf("code = %s, want ORD001", resp.Code)
	}
	if len(orders.requests) != 0 {
		t.Errorf("order calls = %d, want 0", len(orders.requests))
	}
}

func TestOrdersConfirmExternalFailure(t *testing.T) {
	orders := &fakeOrders{err: errors.New("admin api status 500")}
	srv := newTestServer(t, nil, orders, &fakeHistory{})

	body, contentType := multipartBody(t, map[string]string{
		"intent":       "create",
		"customerId":   "777",
		"customerName": "Acme",
		"rows":         confirmRows(),
	}, "", "")

	rec := postOrders(srv, body, contentType)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); resp.Code != "ORD002" {
		t.Errorf("code = %s, want ORD002", resp.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	history := &fakeHistory{}
	for i := 0; i < 3; i++ {
		history.records = append(history.records, importer.HistoryRecord{
			ID:             fmt.Sprintf("rec-%d", i),
			CustomerID:     "777",
			CustomerName:   "Acme",
			OrderID:        fmt.Sprintf("gid://shopify/DraftOrder/%d", i),
			OrderDisplayID: fmt.Sprintf("%d", i),
			TotalQuantity:  i + 1,
			CreatedAt:      time.Now().UTC(),
		})
	}
	srv := newTestServer(t, nil, nil, history)

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(resp.Records))
	}
}

func TestHistoryEndpointNoStore(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "HIST001" {
		t.Errorf("code = %s, want HIST001", resp.Code)
	}
}

func TestHistoryEndpointBadLimit(t *testing.T) {
	srv := newTestServer(t, nil, nil, &fakeHistory{})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=abc", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret-key"}

	history := &fakeHistory{}
	service := importer.NewService(&fakeFinder{variants: map[string]*importer.Variant{}}, &fakeOrders{}, history, nil, 2)
	srv := NewServer(service, history, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("X-API-Key", "secret-key")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	// Health stays open without a key.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"external", &importer.ExternalServiceError{Op: "order create", Err: errors.New("boom")}, http.StatusBadGateway},
		{"limiter", importer.ErrTooManyUploads, http.StatusTooManyRequests},
		{"validation", importer.ErrEmptyFile, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusForError(tt.err); got != tt.want {
				t.Errorf("statusForError = %d, want %d", got, tt.want)
			}
		})
	}
}
