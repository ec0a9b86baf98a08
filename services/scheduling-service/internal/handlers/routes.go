package handlers

import "net/http"

// PublicPaths are exposed to anonymous clients and rate limited.
var PublicPaths = []string{"/api/v1/public/availability", "/api/v1/public/bookings"}

func Register(mux *http.ServeMux, public *PublicHandler, appts *AppointmentHandler, schedule *ScheduleHandler) {
	mux.HandleFunc("/api/v1/public/availability", public.Availability)
	mux.HandleFunc("/api/v1/public/bookings", public.Book)
	mux.HandleFunc("/api/v1/appointments", appts.List)
	mux.HandleFunc("/api/v1/appointments/get", appts.Get)
	mux.HandleFunc("/api/v1/appointments/status", appts.UpdateStatus)
	mux.HandleFunc("/api/v1/working-hours", schedule.WorkingHours)
	mux.HandleFunc("/api/v1/schedule-blocks", schedule.ScheduleBlocks)
}
