package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-sculptor/internal/params"
)

// CategoriesHandler serves the parameter catalog.
type CategoriesHandler struct {
	catalog *params.Catalog
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(catalog *params.Catalog) *CategoriesHandler {
	return &CategoriesHandler{catalog: catalog}
}

// List returns every category with its parameter definitions.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.Categories())
}
