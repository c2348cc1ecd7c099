package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"storefront/internal/domain"
	customersvc "storefront/internal/service/customer"
	identitysvc "storefront/internal/service/identity"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type sessionResponse struct {
	AccessToken string           `json:"accessToken"`
	TokenType   string           `json:"tokenType"`
	ExpiresIn   int              `json:"expiresIn"`
	Customer    *domain.Customer `json:"customer"`
	ItemsMerged int              `json:"itemsMerged"`
}

func (h *handler) register(c *gin.Context) {
	var req customersvc.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	sess, err := h.deps.Customers.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.respondSession(c, http.StatusCreated, sess)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	sess, err := h.deps.Customers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.respondSession(c, http.StatusOK, sess)
}

func (h *handler) verifyEmail(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.logger, bindError(err))
		return
	}
	sess, err := h.deps.Customers.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.respondSession(c, http.StatusOK, sess)
}

// respondSession promotes the caller's guest cart, if any, before answering.
// A failed merge is logged and leaves the guest cart and cookie for a later retry.
func (h *handler) respondSession(c *gin.Context, status int, sess *customersvc.Session) {
	merged := 0
	if guestID := h.guestCredential(c); guestID != "" {
		res, err := h.deps.Merge.PromoteGuest(c.Request.Context(), guestID, sess.Customer.ID)
		if err != nil {
			h.logger.Warn("guest cart merge failed", zap.String("principal_id", sess.Customer.ID), zap.Error(err))
		} else {
			merged = res.ItemsMerged
			if res.ClearCredential {
				clearGuestCookie(c, h.deps.CookieSecure)
			}
		}
	}
	c.JSON(status, sessionResponse{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   h.deps.Identity.AccessTTLSeconds(),
		Customer:    sess.Customer,
		ItemsMerged: merged,
	})
}

// guestCredential returns the request's guest id if it is still usable.
func (h *handler) guestCredential(c *gin.Context) string {
	cookie, err := c.Cookie(identitysvc.CookieName)
	if err != nil || cookie == "" {
		return ""
	}
	res := h.deps.Identity.Resolve(c.Request.Context(), "", cookie)
	if res.Minted {
		return ""
	}
	return res.GuestID
}
