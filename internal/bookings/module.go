// Package bookings provides the bookings domain module: chef recommendations
// and the operator-facing SLA endpoints.
package bookings

import (
	"fulfillment_backend/internal/bookings/handler"
	"fulfillment_backend/internal/bookings/service"
	apphttp "fulfillment_backend/internal/http"
	"fulfillment_backend/platform/validator"
)

// Module represents the bookings domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new bookings module. The store, chef directory, ranker
// and engine are built by the composition root because the scheduler shares them.
func NewModule(bookings service.BookingReader, chefs service.ChefPool, ranker service.Ranker, engine service.SLAEngine, val *validator.Validator) *Module {
	svc := service.New(bookings, chefs, ranker, engine)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "bookings"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes registers the module's routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(
		ctx.Operators.Group("/bookings"),
		ctx.Operators.Group("/recommendations"),
	)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
