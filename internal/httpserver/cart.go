package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
)

type addItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handler) getCart(c *gin.Context) {
	res := resolutionFrom(c)
	summary, err := h.deps.Carts.Summary(c.Request.Context(), res.Identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if summary.Lines == nil {
		summary.Lines = []domain.CartLine{}
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	line, err := h.deps.Carts.AddItem(c.Request.Context(), resolutionFrom(c).Identity, req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

func (h *handler) updateCartItem(c *gin.Context) {
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	if err := h.deps.Carts.UpdateItem(c.Request.Context(), resolutionFrom(c).Identity, lineID, req.Quantity); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) removeCartItem(c *gin.Context) {
	lineID, ok := pathID(c, "lineId")
	if !ok {
		return
	}
	if err := h.deps.Carts.RemoveItem(c.Request.Context(), resolutionFrom(c).Identity, lineID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) clearCart(c *gin.Context) {
	if err := h.deps.Carts.Clear(c.Request.Context(), resolutionFrom(c).Identity); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// mergeCart is the explicit retry path for a guest merge that failed during login.
func (h *handler) mergeCart(c *gin.Context) {
	res := resolutionFrom(c)
	result, err := h.deps.Merge.PromoteGuest(c.Request.Context(), res.GuestID, res.Principal.ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if result.ClearCredential {
		clearGuestCookie(c, h.deps.CookieSecure)
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) ensureUserCart(c *gin.Context) {
	res := resolutionFrom(c)
	ctx := c.Request.Context()
	handle, err := h.deps.Carts.Ensure(ctx, res.Identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	folded, err := h.deps.Merge.Consolidate(ctx, res.Principal.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(c, h.logger, err)
		return
	}
	cartID := handle.CartID
	if folded.CanonicalCartID != 0 {
		cartID = folded.CanonicalCartID
	}
	c.JSON(http.StatusOK, gin.H{"cartId": cartID, "cartsRemoved": folded.CartsRemoved})
}
