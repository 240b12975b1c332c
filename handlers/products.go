package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/catering-backend/internal/catalog"
	"github.com/judyrop/catering-backend/internal/middleware"
)

func (h *handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handler) GetProduct(c *gin.Context) {
	p, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) ListCategories(c *gin.Context) {
	summaries, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *handler) CreateProduct(c *gin.Context) {
	var in catalog.ProductInput
	if !bindJSON(c, &in) {
		return
	}
	p, err := h.catalog.Create(c.Request.Context(), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *handler) UpdateProduct(c *gin.Context) {
	var patch catalog.ProductPatch
	if !bindJSON(c, &patch) {
		return
	}
	p, err := h.catalog.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handler) DeleteProduct(c *gin.Context) {
	if err := h.catalog.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
