// Package api wires the HTTP surface: middleware chain, payment endpoints
// and the paygated resource routes.
package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/modelgate/modelgate/internal/app"
	"github.com/modelgate/modelgate/internal/cache"
	"github.com/modelgate/modelgate/internal/handlers"
	"github.com/modelgate/modelgate/internal/ledger"
	"github.com/modelgate/modelgate/internal/middleware"
	"github.com/modelgate/modelgate/internal/payments"
)

// Dependencies carries the long-lived components the router is built from.
// Cache and Attempts may be nil; the session cache and attempt log degrade
// gracefully without them.
type Dependencies struct {
	DB       *gorm.DB
	Config   *app.Config
	Cache    cache.Store
	Ledger   ledger.Client
	Attempts *payments.AttemptRecorder
}

// NewRouter assembles the full gin engine.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("api: database is required")
	}
	if deps.Config == nil {
		return nil, errors.New("api: config is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("api: ledger client is required")
	}

	fees, err := deps.Config.Payments.FeeSchedule()
	if err != nil {
		return nil, err
	}

	grants, err := payments.NewGrantStore(deps.DB)
	if err != nil {
		return nil, err
	}
	sessions := payments.NewSessionCache(deps.Cache)

	verifier, err := payments.NewVerifier(deps.Ledger, fees, grants, sessions, deps.Attempts, deps.Config.Payments.ValidityWindow)
	if err != nil {
		return nil, err
	}

	gate, err := payments.NewGate(grants, sessions, fees, deps.Ledger.Network(), deps.Ledger.ChainID())
	if err != nil {
		return nil, err
	}

	paymentHandler := handlers.NewPaymentHandler(verifier, gate, grants)
	resourceHandler := handlers.NewResourceHandler()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	if rl := deps.Config.Server.RateLimit; rl.Enabled {
		router.Use(middleware.RateLimit(deps.Cache, rl.MaxRequests, rl.Window))
	}

	router.GET("/health", handlers.Health(deps.DB))
	router.GET("/health/live", handlers.Live())
	router.GET("/health/ready", handlers.Health(deps.DB))
	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		router.GET(prom.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	registerPaymentRoutes(api, paymentHandler)
	registerResourceRoutes(api, resourceHandler, gate)

	router.NoRoute(middleware.NotFoundHandler)

	return router, nil
}
