package httpserver

import (
	"context"
	"errors"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	cartrepo "storefront/internal/repository/cart"
	orderrepo "storefront/internal/repository/order"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
	identitysvc "storefront/internal/service/identity"
	mergesvc "storefront/internal/service/merge"
)

type identityResolver interface {
	Resolve(ctx context.Context, authorization, guestCookie string) identitysvc.Resolution
	AccessTTLSeconds() int
}

type productService interface {
	List(ctx context.Context, limit, offset int) ([]domain.Product, error)
	Get(ctx context.Context, id int64) (*domain.Product, error)
}

type cartService interface {
	Ensure(ctx context.Context, id domain.CartIdentity) (domain.CartHandle, error)
	Summary(ctx context.Context, id domain.CartIdentity) (*cartsvc.Summary, error)
	AddItem(ctx context.Context, id domain.CartIdentity, productID int64, quantity int) (*domain.CartLine, error)
	UpdateItem(ctx context.Context, id domain.CartIdentity, lineID int64, quantity int) error
	RemoveItem(ctx context.Context, id domain.CartIdentity, lineID int64) error
	Clear(ctx context.Context, id domain.CartIdentity) error
}

type mergeService interface {
	PromoteGuest(ctx context.Context, guestID, principalID string) (mergesvc.Result, error)
	Consolidate(ctx context.Context, principalID string) (cartrepo.ConsolidateResult, error)
}

type checkoutService interface {
	PlaceOrder(ctx context.Context, principalID string, in domain.Contact) (*orderrepo.Placed, error)
	SetStatus(ctx context.Context, orderID int64, to domain.OrderStatus, actor domain.Actor) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID int64, actor domain.Actor) (*domain.Order, error)
	ListOrders(ctx context.Context, principalID string) ([]domain.Order, error)
}

type customerService interface {
	Register(ctx context.Context, in customersvc.RegisterInput) (*customersvc.Session, error)
	Login(ctx context.Context, email, password string) (*customersvc.Session, error)
	VerifyEmail(ctx context.Context, token string) (*customersvc.Session, error)
}

// Deps aggregates the services the router depends on.
type Deps struct {
	Identity  identityResolver
	Products  productService
	Carts     cartService
	Merge     mergeService
	Checkout  checkoutService
	Customers customerService

	// Metrics is optional; nil disables the /metrics route and request instrumentation.
	Metrics      *metrics.Metrics
	CORSOrigins  []string
	CookieSecure bool
}

func (d Deps) validate() error {
	switch {
	case d.Identity == nil:
		return errors.New("identity resolver is required")
	case d.Products == nil:
		return errors.New("product service is required")
	case d.Carts == nil:
		return errors.New("cart service is required")
	case d.Merge == nil:
		return errors.New("merge service is required")
	case d.Checkout == nil:
		return errors.New("checkout service is required")
	case d.Customers == nil:
		return errors.New("customer service is required")
	}
	return nil
}

type handler struct {
	deps   Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(zap.NewStdLog(logger).Writer()), gin.Recovery(), tracingMiddleware())

	if len(deps.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = deps.CORSOrigins
		corsCfg.AllowCredentials = true
		corsCfg.AddAllowHeaders("Authorization")
		router.Use(cors.New(corsCfg))
	}
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handler{deps: deps, logger: logger.Named("http")}

	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)

	auth := router.Group("/auth")
	auth.POST("/register", h.register)
	auth.POST("/login", h.login)
	auth.POST("/verify-email", h.verifyEmail)

	cart := router.Group("/cart", identityMiddleware(deps.Identity, deps.CookieSecure))
	cart.GET("", h.getCart)
	cart.DELETE("", h.clearCart)
	cart.POST("/items", h.addCartItem)
	cart.PUT("/items/:lineId", h.updateCartItem)
	cart.DELETE("/items/:lineId", h.removeCartItem)
	cart.POST("/merge", requireAuth(), h.mergeCart)
	cart.POST("/ensure-user-cart", requireAuth(), h.ensureUserCart)

	orders := router.Group("/orders", identityMiddleware(deps.Identity, deps.CookieSecure), requireAuth())
	orders.POST("", h.placeOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.PUT("/:id/status", requireAdmin(), h.setOrderStatus)
	orders.PUT("/user/:id/cancel", h.cancelOwnOrder)

	return router, nil
}
