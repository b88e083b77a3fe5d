// Package router assembles the gin engine of the pipeline service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	_ "github.com/buffalo/orderpipe/docs"
	"github.com/buffalo/orderpipe/internal/infrastructure/auth"
	"github.com/buffalo/orderpipe/internal/infrastructure/logger"
	"github.com/buffalo/orderpipe/internal/interfaces/http/handler"
	"github.com/buffalo/orderpipe/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one resource
type DomainGroup struct {
	prefix     string
	routes     []routeDefinition
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new route group under prefix
func NewDomainGroup(prefix string) *DomainGroup {
	return &DomainGroup{prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: http.MethodGet, path: path, handlers: handlers})
	return dg
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: http.MethodPost, path: path, handlers: handlers})
	return dg
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Handlers are the endpoints served by the engine
type Handlers struct {
	System *handler.SystemHandler
	Runs   *handler.RunHandler
	Orders *handler.OrderHandler
}

// EngineOption configures NewEngine
type EngineOption func(*engineOptions)

type engineOptions struct {
	tracingService  string
	tracingProvider trace.TracerProvider
	tokens          middleware.TokenValidator
	swagger         bool
}

// WithAuth requires a bearer token on every /api route. Listing needs the
// read scope; triggering a run needs the trigger scope.
func WithAuth(v middleware.TokenValidator) EngineOption {
	return func(o *engineOptions) {
		o.tokens = v
	}
}

// WithSwagger serves the API documentation under /swagger
func WithSwagger() EngineOption {
	return func(o *engineOptions) {
		o.swagger = true
	}
}

// WithTracing starts a server span per request. A nil provider means the
// global one.
func WithTracing(serviceName string, tp trace.TracerProvider) EngineOption {
	return func(o *engineOptions) {
		o.tracingService = serviceName
		o.tracingProvider = tp
	}
}

// NewEngine builds the gin engine with request logging and every route
func NewEngine(h Handlers, log *zap.Logger, opts ...EngineOption) *gin.Engine {
	handler.SetupValidator()

	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}

	log = logger.Component(log, logger.ComponentHTTP)
	engine := gin.New()
	if o.tracingService != "" {
		var otelOpts []otelgin.Option
		if o.tracingProvider != nil {
			otelOpts = append(otelOpts, otelgin.WithTracerProvider(o.tracingProvider))
		}
		engine.Use(otelgin.Middleware(o.tracingService, otelOpts...))
	}
	engine.Use(logger.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))

	engine.GET("/health", h.System.Health)
	if o.swagger {
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	read, trigger := scopeGuards(o.tokens, log)
	runs := NewDomainGroup("/runs").
		GET("", append(read, h.Runs.ListRuns)...).
		POST("/:phase", append(trigger, h.Runs.TriggerRun)...)
	orders := NewDomainGroup("/orders").
		Use(read...).
		GET("", h.Orders.ListOrders).
		GET("/:id", h.Orders.GetOrder)

	NewRouter(engine).Register(runs).Register(orders).Setup()
	return engine
}

// scopeGuards returns the middleware chains for read and trigger routes.
// Both are empty when no validator is configured.
func scopeGuards(v middleware.TokenValidator, log *zap.Logger) (read, trigger []gin.HandlerFunc) {
	if v == nil {
		return nil, nil
	}
	read = []gin.HandlerFunc{middleware.RequireScope(v, auth.ScopeRead, log)}
	trigger = []gin.HandlerFunc{middleware.RequireScope(v, auth.ScopeTrigger, log)}
	return read, trigger
}
