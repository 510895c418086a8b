package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/urmzd/upnpd/pkg/api/handlers"
	"github.com/urmzd/upnpd/pkg/device"
	"github.com/urmzd/upnpd/pkg/device/schema"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine     *gin.Engine
	publisher  device.Publisher
	directory  device.Directory
	subscriber device.EventSubscriber
	validator  *schema.Validator
}

// NewRouter creates a new API router
func NewRouter(publisher device.Publisher, directory device.Directory, subscriber device.EventSubscriber, validator *schema.Validator) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:     engine,
		publisher:  publisher,
		directory:  directory,
		subscriber: subscriber,
		validator:  validator,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.directory, r.publisher)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		registrationsHandler := handlers.NewRegistrationsHandler(r.publisher)
		v1.GET("/registrations", registrationsHandler.List)
		v1.POST("/advertise", registrationsHandler.Advertise)

		discoveryHandler := handlers.NewDiscoveryHandler(r.directory, r.subscriber, r.validator)
		discovery := v1.Group("/discovery")
		{
			discovery.POST("/search", discoveryHandler.Search)
			discovery.GET("/peers", discoveryHandler.ListPeers)
			discovery.GET("/peers/:usn", discoveryHandler.GetPeer)
			discovery.GET("/events", discoveryHandler.Events)
		}

		servicesHandler := handlers.NewServicesHandler(r.publisher, r.validator)
		services := v1.Group("/services")
		{
			services.GET("", servicesHandler.List)
			services.POST("/:id/notify", servicesHandler.Notify)
		}
	}
}

// Handler returns the router as an http.Handler for use with http.Server
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
