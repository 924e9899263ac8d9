package api

import "net/http"

// SetupRoutes registers the trigger endpoints on the mux.
func SetupRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/fetch/{id}", h.TriggerFetch)
	mux.HandleFunc("POST /api/enrich/{id}", h.TriggerEnrich)
	mux.HandleFunc("POST /api/brief/{id}", h.TriggerBrief)
	mux.HandleFunc("POST /api/sources/validate", h.ValidateSource)
	mux.HandleFunc("POST /api/ingress/email", h.ReceiveEmail)
}
