package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
)

type productListResponse struct {
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Count   int              `json:"count"`
	Results []domain.Product `json:"results"`
}

func (h *handler) listProducts(c *gin.Context) {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)
	products, err := h.deps.Products.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, productListResponse{
		Limit:   limit,
		Offset:  offset,
		Count:   len(products),
		Results: products,
	})
}

func (h *handler) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.deps.Products.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// pathID parses a positive integer path parameter, writing a 400 when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, nil, domain.NewValidationError(name, "must be a positive integer"))
		return 0, false
	}
	return id, true
}
