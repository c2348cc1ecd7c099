package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"storefront/internal/domain"
	identitysvc "storefront/internal/service/identity"
	"storefront/internal/telemetry"
)

const resolutionKey = "cart_identity"

// identityMiddleware resolves the cart identity once per request and issues a
// guest credential when the caller had none.
func identityMiddleware(resolver identityResolver, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(identitysvc.CookieName)
		res := resolver.Resolve(c.Request.Context(), c.GetHeader("Authorization"), cookie)
		if res.Minted {
			setGuestCookie(c, res.GuestID, secureCookie)
		}
		c.Set(resolutionKey, res)
		c.Next()
	}
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c) == nil {
			writeError(c, nil, domain.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := principalFrom(c)
		if p == nil || p.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"reason": "forbidden", "message": "admin role required"})
			return
		}
		c.Next()
	}
}

// tracingMiddleware opens a server span per request and exposes its trace id.
func tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := telemetry.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		)
		defer span.End()
		if id := telemetry.TraceID(ctx); id != "" {
			c.Header("X-Trace-Id", id)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func resolutionFrom(c *gin.Context) identitysvc.Resolution {
	v, ok := c.Get(resolutionKey)
	if !ok {
		return identitysvc.Resolution{}
	}
	res, _ := v.(identitysvc.Resolution)
	return res
}

func principalFrom(c *gin.Context) *identitysvc.Principal {
	return resolutionFrom(c).Principal
}

func setGuestCookie(c *gin.Context, guestID string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(identitysvc.CookieName, guestID, int(identitysvc.GuestTTL.Seconds()), "/", "", secure, true)
}

func clearGuestCookie(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(identitysvc.CookieName, "", -1, "/", "", secure, true)
}
