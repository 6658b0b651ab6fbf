package main

import (
	"github.com/pavitra93/go-gym-booking/shared/models"
)

// SessionResponse is a session instance with its derived seat count
type SessionResponse struct {
	*models.SessionInstance
	SpotsAvailable int `json:"spotsAvailable"`
}

func newSessionResponse(inst *models.SessionInstance) SessionResponse {
	return SessionResponse{SessionInstance: inst, SpotsAvailable: inst.SpotsAvailable()}
}

// BookingResponse is a booking with its session rendered as a SessionResponse
type BookingResponse struct {
	*models.Booking
	SessionInstance *SessionResponse `json:"sessionInstance,omitempty"`
}

func newBookingResponse(b *models.Booking) BookingResponse {
	resp := BookingResponse{Booking: b}
	if b.SessionInstance != nil {
		session := newSessionResponse(b.SessionInstance)
		resp.SessionInstance = &session
	}
	return resp
}
