// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/carpool-ride-reservation/internal/handler"
	"github.com/iliyamo/carpool-ride-reservation/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
// Currently only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me is protected by JWTAuth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT middleware: the handler accepts
	// either a refresh_token body or a bearer token directly.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("DRIVER", "RIDER"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated ride browsing.  Driver
// identity is stripped from every response these handlers produce.
// The response cache is applied here and nowhere else: cache keys
// carry no user component, so caching an authenticated route would
// replay one user's response to everyone.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/rides")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("", p.ListRides)
	g.GET("/search", p.SearchRides)
	g.GET("/:id", p.GetRide)
}

// RegisterDriver registers ride management endpoints.  Only users
// holding the DRIVER role may publish or edit rides.
func RegisterDriver(e *echo.Echo, h *handler.RideHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("DRIVER"))
	g.POST("/rides", h.CreateRide)
	g.PATCH("/rides/:id", h.UpdateRide)
	g.GET("/my-rides", h.MyRides)
}

// RegisterRider registers the booking endpoints.  Any authenticated
// user may reserve seats; drivers booking rides published by other
// drivers is allowed.
func RegisterRider(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("DRIVER", "RIDER"))
	g.POST("/rides/:id/book", h.Book)
	g.GET("/my-bookings", h.MyBookings)
}
