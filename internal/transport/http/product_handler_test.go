package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "licensepanel/internal/errors"
	"licensepanel/pkg/contracts/domain"
)

func TestProductHandler_CRUD(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/admin/products", ProductRequest{Name: "  Zeta Plugin ", HWIDProtection: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeMap(t, rec)
	id := created["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, "Zeta Plugin", created["name"])
	assert.Equal(t, true, created["hwidProtection"])

	rec = ts.do(t, http.MethodPost, "/api/admin/products", ProductRequest{Name: "alpha"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/admin/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0]["name"])

	rec = ts.do(t, http.MethodPut, "/api/admin/products/"+id, ProductRequest{Name: "Zeta", BuiltByBitResourceID: "4242"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeMap(t, rec)
	assert.Equal(t, "Zeta", updated["name"])
	assert.Equal(t, "4242", updated["builtByBitResourceId"])

	rec = ts.do(t, http.MethodDelete, "/api/admin/products/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	requireProblem(t, ts.do(t, http.MethodGet, "/api/admin/products/"+id, nil), http.StatusNotFound, apierrors.TypeProductNotFound)
}

func TestProductHandler_Rejects(t *testing.T) {
	ts := newTestServer(t)
	ts.product(t, "p1")
	ts.license(t, domain.License{Key: "LP-USED", ProductID: "p1"})

	tests := []struct {
		name        string
		method      string
		path        string
		body        interface{}
		wantStatus  int
		wantProblem string
	}{
		{"missing name", http.MethodPost, "/api/admin/products", map[string]interface{}{}, http.StatusBadRequest, apierrors.TypeValidation},
		{"name too long", http.MethodPost, "/api/admin/products", ProductRequest{Name: strings.Repeat("a", 101)}, http.StatusBadRequest, apierrors.TypeValidation},
		{"update unknown", http.MethodPut, "/api/admin/products/nope", ProductRequest{Name: "x"}, http.StatusNotFound, apierrors.TypeProductNotFound},
		{"delete in use", http.MethodDelete, "/api/admin/products/p1", nil, http.StatusConflict, apierrors.TypeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireProblem(t, ts.do(t, tt.method, tt.path, tt.body), tt.wantStatus, tt.wantProblem)
		})
	}
}
