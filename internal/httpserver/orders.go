package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type placedOrderResponse struct {
	Order *domain.Order       `json:"order"`
	Lines []domain.PricedLine `json:"lines"`
}

func (h *handler) placeOrder(c *gin.Context) {
	var contact domain.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	placed, err := h.deps.Checkout.PlaceOrder(c.Request.Context(), principalFrom(c).ID, contact)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, placedOrderResponse{Order: placed.Order, Lines: placed.Lines})
}

func (h *handler) listOrders(c *gin.Context) {
	orders, err := h.deps.Checkout.ListOrders(c.Request.Context(), principalFrom(c).ID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"results": orders, "count": len(orders)})
}

func (h *handler) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.deps.Checkout.GetOrder(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handler) setOrderStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	to, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		writeError(c, h.logger, domain.NewValidationError("status", "unknown order status"))
		return
	}
	o, err := h.deps.Checkout.SetStatus(c.Request.Context(), id, to, actorFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// cancelOwnOrder always acts with owner rights, even for admins.
func (h *handler) cancelOwnOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	actor := domain.Actor{PrincipalID: principalFrom(c).ID, Role: domain.RoleCustomer}
	o, err := h.deps.Checkout.SetStatus(c.Request.Context(), id, domain.StatusUserCancelled, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func actorFrom(c *gin.Context) domain.Actor {
	p := principalFrom(c)
	return domain.Actor{PrincipalID: p.ID, Role: p.Role}
}
