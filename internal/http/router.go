// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"valet/internal/http/handlers"
	"valet/internal/http/middleware"
	"valet/internal/modules/pricing"
)

func NewRouter(pricingService *pricing.Service, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	pricingHandler := handlers.NewPricingHandler(pricingService)
	api := r.Group("/api")
	api.POST("/scopes/:scope/quotes", pricingHandler.Quote)
	api.GET("/scopes/:scope/quotes", pricingHandler.ListQuotes)
	api.GET("/quotes/:id", pricingHandler.GetQuote)
	api.PUT("/scopes/:scope/pricing-config", pricingHandler.PutConfig)
	api.GET("/scopes/:scope/pricing-config", pricingHandler.GetConfig)
	api.GET("/scopes/:scope/smoothing", pricingHandler.GetSmoothing)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
