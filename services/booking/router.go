package main

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pavitra93/go-gym-booking/shared/booking"
	"github.com/pavitra93/go-gym-booking/shared/config"
	"github.com/pavitra93/go-gym-booking/shared/middleware"
	"github.com/pavitra93/go-gym-booking/shared/store"
)

// routerDeps are the components the HTTP layer calls into
type routerDeps struct {
	Store     *store.Store
	Auth      *middleware.AuthMiddleware
	Scheduler *booking.Scheduler
	Engine    *booking.Engine
	Queries   *booking.Queries
	CORS      config.CORSConfig
	Now       func() time.Time
}

var registerTagNames sync.Once

// useJSONFieldNames makes validation errors name fields as clients send them
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}

func newRouter(deps routerDeps) *gin.Engine {
	useJSONFieldNames()
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SetupCORS(deps.CORS))
	router.Use(requestMetrics())

	router.GET("/health", handleHealth(deps.Store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/")
	api.Use(deps.Auth.RequireAuth())

	operator := deps.Auth.RequireOperator()

	locations := api.Group("/locations")
	{
		locations.POST("", operator, handleCreateLocation(deps.Store))
		locations.GET("", operator, handleListLocations(deps.Store))
	}

	sessionTypes := api.Group("/session-types")
	{
		sessionTypes.POST("", operator, handleCreateSessionType(deps.Store))
		sessionTypes.GET("", operator, handleListSessionTypes(deps.Store))
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", operator, handleCreateSession(deps.Scheduler))
		sessions.GET("", operator, handleListSessions(deps.Queries))
		sessions.GET("/available", handleListAvailable(deps.Queries, deps.Now))
		sessions.GET("/:id", handleGetSession(deps.Scheduler))
		sessions.PUT("/:id/cancel", operator, handleCancelSession(deps.Scheduler))
		sessions.PUT("/:id/complete", operator, handleCompleteSession(deps.Scheduler))
	}

	bookings := api.Group("/bookings")
	{
		bookings.POST("", handleCreateBooking(deps.Engine))
		bookings.GET("/my", handleListMyBookings(deps.Queries))
		bookings.GET("/:id", handleGetBooking(deps.Engine))
		bookings.DELETE("/:id", handleCancelBooking(deps.Engine))
	}

	return router
}
