package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dom/yumyum-storefront/internal/api/middleware"
	"github.com/dom/yumyum-storefront/internal/domain"
	"github.com/dom/yumyum-storefront/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ProductHandler struct {
	productService *service.ProductService
	log            *slog.Logger
}

func NewProductHandler(productService *service.ProductService, log *slog.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, log: log}
}

type ProductResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Tags        []string `json:"tags"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// IndexResponse is the landing page: the catalog plus the signed-in name.
type IndexResponse struct {
	User     *string           `json:"user"`
	Products []ProductResponse `json:"products"`
}

func (h *ProductHandler) Index(w http.ResponseWriter, r *http.Request) {
	products, ok := h.loadAll(w, r, "product.Index")
	if !ok {
		return
	}

	resp := IndexResponse{Products: products}
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		name := claims.Name
		resp.User = &name
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	products, ok := h.loadAll(w, r, "product.GetAll")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}

	product, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.log.ErrorContext(r.Context(), "[product.Get] failed to load product", "product_id", id, "error", err)
		http.Error(w, "Failed to get product", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

func (h *ProductHandler) loadAll(w http.ResponseWriter, r *http.Request, op string) ([]ProductResponse, bool) {
	products, err := h.productService.GetAllProducts(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "["+op+"] failed to load products", "error", err)
		http.Error(w, "Failed to get products", http.StatusInternalServerError)
		return nil, false
	}

	resp := make([]ProductResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	return resp, true
}

func toProductResponse(p *domain.Product) ProductResponse {
	tags := []string{}
	if len(p.Tags) > 0 {
		json.Unmarshal(p.Tags, &tags)
	}

	return ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Tags:        tags,
	}
}
