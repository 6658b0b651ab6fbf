package main

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pavitra93/go-gym-booking/shared/apperr"
	"github.com/pavitra93/go-gym-booking/shared/booking"
	"github.com/pavitra93/go-gym-booking/shared/middleware"
	"github.com/pavitra93/go-gym-booking/shared/models"
	"github.com/pavitra93/go-gym-booking/shared/store"
	"github.com/pavitra93/go-gym-booking/shared/utils"
)

// CreateLocationRequest represents the create location request
type CreateLocationRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Address  string `json:"address" binding:"max=500"`
	Capacity *int   `json:"capacity" binding:"omitempty,gt=0"`
	Timezone string `json:"timezone" binding:"max=64"`
}

// CreateSessionTypeRequest represents the create session type request
type CreateSessionTypeRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
	DurationMin int    `json:"durationMin" binding:"required,gt=0"`
	MaxCapacity int    `json:"maxCapacity" binding:"required,gt=0"`
	Category    string `json:"category" binding:"required,oneof=class pt group workshop"`
	Difficulty  string `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
}

// CreateSessionRequest represents the create session instance request
type CreateSessionRequest struct {
	SessionTypeID string     `json:"sessionTypeId" binding:"required,uuid"`
	LocationID    string     `json:"locationId" binding:"required,uuid"`
	StartTime     time.Time  `json:"startTime" binding:"required"`
	EndTime       *time.Time `json:"endTime"`
	Instructor    string     `json:"instructor" binding:"max=100"`
	Capacity      *int       `json:"capacity" binding:"omitempty,gt=0"`
	Notes         string     `json:"notes" binding:"max=1000"`
}

// CreateBookingRequest represents the create booking request
type CreateBookingRequest struct {
	SessionInstanceID string `json:"sessionInstanceId" binding:"required,uuid"`
	Notes             string `json:"notes" binding:"max=500"`
}

// AvailableQuery holds the GET /sessions/available filters
type AvailableQuery struct {
	Category   string `form:"category" binding:"omitempty,oneof=class pt group workshop"`
	LocationID string `form:"locationId" binding:"omitempty,uuid"`
	Date       string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// SessionsQuery holds the GET /sessions filters
type SessionsQuery struct {
	AvailableQuery
	Status string `form:"status" binding:"omitempty,oneof=scheduled cancelled completed"`
}

// MyBookingsQuery holds the GET /bookings/my filters
type MyBookingsQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=confirmed cancelled"`
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondError(c, apperr.New(apperr.KindValidation, "Invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func identityOf(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		utils.RespondError(c, apperr.New(apperr.KindUnauthorized, "User identity not found in context"))
	}
	return identity, ok
}

// handleCreateLocation handles POST /locations
func handleCreateLocation(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var req CreateLocationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		loc := &models.Location{
			Name:     req.Name,
			Address:  req.Address,
			Capacity: req.Capacity,
			Timezone: req.Timezone,
			IsActive: true,
		}
		if err := st.ForTenant(identity.TenantID).CreateLocation(c.Request.Context(), loc); err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.CreatedResponse(c, loc)
	}
}

// handleListLocations handles GET /locations
func handleListLocations(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		page := utils.ParsePageParams(c)
		locations, err := st.ForTenant(identity.TenantID).ListLocations(c.Request.Context(), page.GetOffset(), page.GetLimit())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, locations)
	}
}

// handleCreateSessionType handles POST /session-types
func handleCreateSessionType(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var req CreateSessionTypeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		sessionType := &models.SessionType{
			Name:        req.Name,
			Description: req.Description,
			DurationMin: req.DurationMin,
			MaxCapacity: req.MaxCapacity,
			Category:    models.SessionCategory(req.Category),
			Difficulty:  req.Difficulty,
			IsActive:    true,
		}
		if err := st.ForTenant(identity.TenantID).CreateSessionType(c.Request.Context(), sessionType); err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.CreatedResponse(c, sessionType)
	}
}

// handleListSessionTypes handles GET /session-types
func handleListSessionTypes(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		page := utils.ParsePageParams(c)
		types, err := st.ForTenant(identity.TenantID).ListSessionTypes(c.Request.Context(), page.GetOffset(), page.GetLimit())
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, types)
	}
}

// handleCreateSession handles POST /sessions
func handleCreateSession(scheduler *booking.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var req CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		inst, err := scheduler.CreateInstance(c.Request.Context(), identity.TenantID, booking.InstanceRequest{
			SessionTypeID: uuid.MustParse(req.SessionTypeID),
			LocationID:    uuid.MustParse(req.LocationID),
			StartTime:     req.StartTime,
			EndTime:       req.EndTime,
			Capacity:      req.Capacity,
			Instructor:    req.Instructor,
			Notes:         req.Notes,
		})
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.CreatedResponse(c, newSessionResponse(inst))
	}
}

// handleGetSession handles GET /sessions/:id
func handleGetSession(scheduler *booking.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		inst, err := scheduler.Instance(c.Request.Context(), identity.TenantID, id)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, newSessionResponse(inst))
	}
}

// handleListAvailable handles GET /sessions/available
func handleListAvailable(queries *booking.Queries, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var q AvailableQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		filter, ok := q.filter(c)
		if !ok {
			return
		}

		page := utils.ParsePageParams(c)
		seq := queries.Available(c.Request.Context(), identity.TenantID, now(), filter)
		respondSessions(c, seq, page)
	}
}

// handleListSessions handles GET /sessions, the operator view of the schedule
func handleListSessions(queries *booking.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var q SessionsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}
		filter, ok := q.filter(c)
		if !ok {
			return
		}
		status := models.SessionScheduled
		if q.Status != "" {
			status = models.SessionStatus(q.Status)
		}

		page := utils.ParsePageParams(c)
		seq := queries.Sessions(c.Request.Context(), identity.TenantID, status, filter)
		respondSessions(c, seq, page)
	}
}

// handleCancelSession handles PUT /sessions/:id/cancel
func handleCancelSession(scheduler *booking.Scheduler) gin.HandlerFunc {
	return handleSessionTransition(scheduler.CancelInstance)
}

// handleCompleteSession handles PUT /sessions/:id/complete
func handleCompleteSession(scheduler *booking.Scheduler) gin.HandlerFunc {
	return handleSessionTransition(scheduler.CompleteInstance)
}

func handleSessionTransition(transition func(ctx context.Context, tenantID, id uuid.UUID) (*models.SessionInstance, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		inst, err := transition(c.Request.Context(), identity.TenantID, id)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, newSessionResponse(inst))
	}
}

func (q AvailableQuery) filter(c *gin.Context) (store.AvailableFilter, bool) {
	filter := store.AvailableFilter{Category: models.SessionCategory(q.Category)}
	if q.LocationID != "" {
		filter.LocationID = uuid.MustParse(q.LocationID)
	}
	if q.Date != "" {
		day, err := time.Parse("2006-01-02", q.Date)
		if err != nil {
			utils.RespondError(c, apperr.New(apperr.KindValidation, "date must be YYYY-MM-DD"))
			return filter, false
		}
		filter.Date = day
	}
	return filter, true
}

func respondSessions(c *gin.Context, seq iter.Seq2[models.SessionInstance, error], page utils.PageParams) {
	instances, err := booking.Collect(seq, page.GetOffset(), page.GetLimit())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	out := make([]SessionResponse, 0, len(instances))
	for i := range instances {
		out = append(out, newSessionResponse(&instances[i]))
	}
	utils.OKResponse(c, out)
}

// handleCreateBooking handles POST /bookings
func handleCreateBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var req CreateBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		b, err := engine.Book(c.Request.Context(), identity.TenantID, identity.MemberID, uuid.MustParse(req.SessionInstanceID), req.Notes)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.CreatedResponse(c, newBookingResponse(b))
	}
}

// handleListMyBookings handles GET /bookings/my
func handleListMyBookings(queries *booking.Queries) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}

		var q MyBookingsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			utils.RespondError(c, utils.BindingError(err))
			return
		}

		page := utils.ParsePageParams(c)
		seq := queries.Mine(c.Request.Context(), identity.TenantID, identity.MemberID, models.BookingStatus(q.Status))
		bookings, err := booking.Collect(seq, page.GetOffset(), page.GetLimit())
		if err != nil {
			utils.RespondError(c, err)
			return
		}

		out := make([]BookingResponse, 0, len(bookings))
		for i := range bookings {
			out = append(out, newBookingResponse(&bookings[i]))
		}
		utils.OKResponse(c, out)
	}
}

// handleGetBooking handles GET /bookings/:id
func handleGetBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		b, err := engine.Booking(c.Request.Context(), identity, id)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, newBookingResponse(b))
	}
}

// handleCancelBooking handles DELETE /bookings/:id
func handleCancelBooking(engine *booking.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityOf(c)
		if !ok {
			return
		}
		id, ok := pathID(c)
		if !ok {
			return
		}

		b, err := engine.Cancel(c.Request.Context(), identity, id)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		utils.OKResponse(c, newBookingResponse(b))
	}
}

// handleHealth handles GET /health
func handleHealth(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"service": "booking",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "booking",
		})
	}
}
