package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/orderdesk/orderdesk/internal/importer"
	"github.com/orderdesk/orderdesk/internal/logging"
	"github.com/orderdesk/orderdesk/internal/sheet"
)

// Intents accepted by the orders endpoint. "process" runs a read-only
// preview; "create" confirms a reviewed snapshot and places the order.
const (
	intentProcess = "process"
	intentCreate  = "create"
)

// multipartMemoryLimit is how much of the form is held in memory before
// spilling to disk.
const multipartMemoryLimit = 4 << 20

// orderForm carries the fields common to both intents.
type orderForm struct {
	Intent       string `validate:"required,oneof=process create"`
	CustomerID   string `validate:"required"`
	CustomerName string `validate:"required"`
}

// previewResponse is the JSON body returned by the process intent.
type previewResponse struct {
	CustomerName string                   `json:"customerName"`
	CustomerID   string                   `json:"customerId"`
	Rows         []importer.ReconciledRow `json:"rows"`
}

// confirmResponse is the JSON body returned by the create intent.
type confirmResponse struct {
	OrderID        string `json:"orderId"`
	OrderDisplayID string `json:"orderDisplayId"`
	OrderLabel     string `json:"orderLabel"`
	TotalQuantity  int    `json:"totalQuantity"`
}

// handleOrders dispatches on the intent form field.
//
// POST /api/orders with intent=process expects a multipart upload with a
// "file" part plus customerId and customerName fields, and returns the
// reconciled preview. intent=create expects the previewed rows back in a
// "rows" field as JSON, and creates the order.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}()

	form := orderForm{
		Intent:       strings.TrimSpace(r.FormValue("intent")),
		CustomerID:   strings.TrimSpace(r.FormValue("customerId")),
		CustomerName: strings.TrimSpace(r.FormValue("customerName")),
	}
	if err := s.validate.Struct(form); err != nil {
		// Missing customer fields get the specific message; anything
		// else on this form is a bad intent value.
		if form.CustomerID == "" || form.CustomerName == "" {
			s.respondError(w, r, importer.ErrMissingCustomer, http.StatusBadRequest)
			return
		}
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	switch form.Intent {
	case intentProcess:
		s.handlePreview(ctx, w, r, form)
	case intentCreate:
		s.handleConfirm(ctx, w, r, form)
	}
}

// handlePreview decodes the uploaded sheet and reconciles it.
func (s *Server) handlePreview(ctx context.Context, w http.ResponseWriter, r *http.Request, form orderForm) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, importer.ErrEmptyFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	logging.FromContext(ctx).Info("processing upload",
		"customer_id", form.CustomerID,
		"filename", header.Filename,
		"size", header.Size,
	)

	grid, err := sheet.Decode(header.Filename, file)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.service.Preview(ctx, form.CustomerName, form.CustomerID, grid)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		CustomerName: result.CustomerName,
		CustomerID:   result.CustomerID,
		Rows:         result.Rows,
	})
}

// handleConfirm places an order from a previously previewed snapshot.
func (s *Server) handleConfirm(ctx context.Context, w http.ResponseWriter, r *http.Request, form orderForm) {
	rowsField := r.FormValue("rows")
	if rowsField == "" {
		s.respondError(w, r, importer.ErrNothingToOrder, http.StatusBadRequest)
		return
	}

	var rows []importer.ReconciledRow
	if err := json.Unmarshal([]byte(rowsField), &rows); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	result, err := s.service.Confirm(ctx, form.CustomerName, form.CustomerID, rows)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	writeJSON(w, http.StatusCreated, confirmResponse{
		OrderID:        result.OrderID,
		OrderDisplayID: result.OrderDisplayID,
		OrderLabel:     result.OrderLabel,
		TotalQuantity:  result.TotalQuantity,
	})
}

// historyResponse is the JSON body of the history endpoint.
type historyResponse struct {
	Records []importer.HistoryRecord `json:"records"`
}

// handleHistory returns the newest order history rows, newest first.
// GET /api/history?limit=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "History is not available",
			Message: "History is not available",
			Action:  "Configure a database to enable order history.",
			Code:    "HIST001",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Records: records})
}

// handleHealth reports process liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
