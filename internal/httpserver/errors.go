package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
)

// writeError maps a service error onto the JSON error body. Anything that is
// not a known business error is logged and reported as a storage failure.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		ve *domain.ValidationError
		qe *domain.QuantityExceededError
		se *domain.InsufficientStockError
		te *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid_input", "message": ve.Error(), "fields": ve.Fields})
	case errors.As(err, &qe):
		c.JSON(http.StatusBadRequest, gin.H{
			"reason":    "quantity_exceeded",
			"message":   qe.Error(),
			"productId": qe.ProductID,
			"current":   qe.Current,
			"requested": qe.Requested,
			"max":       qe.Max,
		})
	case errors.As(err, &se):
		c.JSON(http.StatusBadRequest, gin.H{
			"reason":    "insufficient_stock",
			"message":   se.Error(),
			"productId": se.ProductID,
			"title":     se.Title,
			"requested": se.Requested,
			"available": se.Available,
		})
	case errors.As(err, &te):
		allowed := te.Allowed
		if allowed == nil {
			allowed = []domain.OrderStatus{}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"reason":  "invalid_transition",
			"message": te.Error(),
			"from":    te.From,
			"to":      te.To,
			"allowed": allowed,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"reason": "empty_cart", "message": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"reason": "not_found", "message": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"reason": "already_exists", "message": err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"reason": "invalid_credentials", "message": err.Error()})
	case errors.Is(err, customersvc.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"reason": "invalid_token", "message": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"reason": "unauthorized", "message": "authentication required"})
	default:
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"reason": "storage_failure", "message": "temporary storage failure, retry later"})
	}
}

func bindError(err error) error {
	return domain.NewValidationError("body", err.Error())
}
