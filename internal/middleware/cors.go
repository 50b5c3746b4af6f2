package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS returns the CORS middleware for the first-party API. The allow-list
// is fixed at startup; changing it requires a redeploy. The cross-domain
// handshake endpoint manages its own CORS headers and must not sit behind
// this middleware.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
