package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/habits-api/internal/api/shared"
	"github.com/phrazzld/habits-api/internal/generation"
	"github.com/phrazzld/habits-api/internal/service"
	"github.com/phrazzld/habits-api/internal/service/auth"
	"github.com/phrazzld/habits-api/internal/store"
)

// requirePrincipal returns the authenticated caller, writing a 401 when the
// auth middleware did not run.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, service.ErrUnauthenticated, "")
		return auth.Principal{}, false
	}
	return p, true
}

// pathTemplateID extracts the {id} path parameter.
func pathTemplateID(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", generation.ErrInvalidTemplateID
	}
	return id, nil
}

// parseHistoryQuery reads and validates the history endpoint's query.
func parseHistoryQuery(r *http.Request) (HistoryQuery, error) {
	limit, err := shared.QueryInt(r, "limit", store.ClampLimit(0))
	if err != nil {
		return HistoryQuery{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	q := HistoryQuery{Limit: limit}
	if err := shared.ValidateRequest(q); err != nil {
		return HistoryQuery{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return q, nil
}
