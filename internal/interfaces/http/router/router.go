package router

import (
	"github.com/gin-gonic/gin"
	"github.com/stockcore/backend/internal/interfaces/http/handler"
)

// RouteRegistrar registers a group of related routes under an API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router assembles the versioned API surface from registrars
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// Option configures the router
type Option func(*Router)

// WithAPIVersion overrides the default API version segment
func WithAPIVersion(version string) Option {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router on top of the given engine
func NewRouter(engine *gin.Engine, opts ...Option) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a registrar; routes are mounted on Setup
func (r *Router) Register(registrars ...RouteRegistrar) {
	r.registrars = append(r.registrars, registrars...)
}

// Use attaches middleware to the underlying engine
func (r *Router) Use(middleware ...gin.HandlerFunc) {
	r.engine.Use(middleware...)
}

// Setup mounts every registered route group under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// StockAPI mounts the stock ledger endpoints
type StockAPI struct {
	Movements    *handler.MovementHandler
	Reservations *handler.ReservationHandler
	Balances     *handler.BalanceHandler
}

// RegisterRoutes registers all stock routes on the API group
func (s *StockAPI) RegisterRoutes(rg *gin.RouterGroup) {
	stock := rg.Group("/stock")
	{
		stock.POST("/movements", s.Movements.Record)

		stock.POST("/reservations", s.Reservations.Create)
		stock.GET("/reservations/:id", s.Reservations.GetByID)
		stock.POST("/reservations/:id/release", s.Reservations.Release)
		stock.POST("/reservations/:id/cancel", s.Reservations.Cancel)

		stock.GET("/balances", s.Balances.List)
		stock.GET("/balances/:id", s.Balances.GetByID)
		stock.GET("/balances/:id/transactions", s.Balances.History)
		stock.GET("/products/:product_id/balances", s.Balances.ListByProduct)
		stock.GET("/documents/:kind/:id/transactions", s.Balances.DocumentHistory)
		stock.GET("/transactions/:id", s.Balances.GetTransaction)
	}
}

// SystemAPI mounts the operational endpoints
type SystemAPI struct {
	System *handler.SystemHandler
}

// RegisterRoutes registers the system routes on the API group
func (s *SystemAPI) RegisterRoutes(rg *gin.RouterGroup) {
	system := rg.Group("/system")
	{
		system.GET("/info", s.System.GetSystemInfo)
		system.GET("/ping", s.System.Ping)
	}
}
