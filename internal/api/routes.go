package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(h.logger),
		Recovery(),
		Logging(),
		RequireActor(),
	)

	// Discharge
	mux.Handle("POST /api/v1/discharge", chain(http.HandlerFunc(h.Discharge)))
	mux.Handle("GET /api/v1/discharge/{key}", chain(http.HandlerFunc(h.GetDischarge)))

	// Cases
	mux.Handle("GET /api/v1/cases/{id}", chain(http.HandlerFunc(h.GetCase)))
}
