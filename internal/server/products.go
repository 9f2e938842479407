package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalog "github.com/okozhin/catalogd/internal"
)

// handleListProducts serves GET /v1/products: a filtered, paginated page
// of live products, served from the pagination cache when possible.
func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseListQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result, err := s.deps.Catalog.List(r.Context(), filter, page)
	if err != nil {
		writeJSON(w, errorStatus(err), errorResponse("failed to list products"))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetProduct serves GET /v1/products/{id}.
func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.deps.Catalog.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, errorStatus(err), errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeleteProduct serves DELETE /v1/products/{id}: soft-deletes the
// product and drops cached listings. Repeated deletes succeed.
func (s *server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.deps.Catalog.SoftDelete(r.Context(), id); err != nil {
		writeJSON(w, errorStatus(err), errorResponse(err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSync serves POST /v1/sync: runs one reconcile pass against the
// content source and reports per-record counts.
func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("sync is not configured"))
		return
	}

	res, err := s.deps.Syncer.Reconcile(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseListQuery extracts filter and pagination parameters from the URL.
// Absent parameters fall back to defaults; malformed numbers are rejected
// rather than silently ignored.
func parseListQuery(r *http.Request) (catalog.Filter, catalog.Page, error) {
	q := r.URL.Query()

	var page catalog.Page
	var err error
	if page.Page, err = intParam(q.Get("page")); err != nil {
		return catalog.Filter{}, catalog.Page{}, fmt.Errorf("invalid page: %w", err)
	}
	if page.Limit, err = intParam(q.Get("limit")); err != nil {
		return catalog.Filter{}, catalog.Page{}, fmt.Errorf("invalid limit: %w", err)
	}

	filter := catalog.Filter{
		Name:     q.Get("name"),
		Category: q.Get("category"),
	}
	if filter.MinPrice, err = floatParam(q.Get("minPrice")); err != nil {
		return catalog.Filter{}, catalog.Page{}, fmt.Errorf("invalid minPrice: %w", err)
	}
	if filter.MaxPrice, err = floatParam(q.Get("maxPrice")); err != nil {
		return catalog.Filter{}, catalog.Page{}, fmt.Errorf("invalid maxPrice: %w", err)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return catalog.Filter{}, catalog.Page{}, errors.New("minPrice exceeds maxPrice")
	}
	return filter, page, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func floatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "invalid_request_error"
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, catalog.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, catalog.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
