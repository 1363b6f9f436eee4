package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensepanel/internal/license"
)

// ProductHandler serves product CRUD.
type ProductHandler struct {
	products *license.ProductService
	rs       *Responder
	logger   *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(products *license.ProductService, rs *Responder, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, rs: rs, logger: logger.With(slog.String("handler", "product"))}
}

// Routes mounts under /api/admin/products.
func (h *ProductHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// ProductRequest creates or replaces a product.
type ProductRequest struct {
	Name                 string `json:"name" validate:"required,max=100"`
	HWIDProtection       bool   `json:"hwidProtection"`
	BuiltByBitResourceID string `json:"builtByBitResourceId" validate:"omitempty,max=32"`
}

func (p ProductRequest) params() license.ProductParams {
	return license.ProductParams{
		Name:                 p.Name,
		HWIDProtection:       p.HWIDProtection,
		BuiltByBitResourceID: p.BuiltByBitResourceID,
	}
}

// List handles GET /api/admin/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, products)
}

// Create handles POST /api/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	product, err := h.products.Create(r.Context(), req.params())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusCreated, product)
}

// Get handles GET /api/admin/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, product)
}

// Update handles PUT /api/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	product, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.params())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, product)
}

// Delete handles DELETE /api/admin/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.NoContent(w, r)
}
