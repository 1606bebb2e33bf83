package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lot-auction-backend/internal/hub"
	"github.com/DoyleJ11/lot-auction-backend/internal/ws"
)

type Deps struct {
	Hub            *hub.Hub
	Logger         *zap.Logger
	AdminSecret    string
	PublicBaseURL  string
	AllowedOrigins []string
	// Results is optional; without it the results endpoint answers 404.
	Results ResultLister
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if len(d.AllowedOrigins) == 0 {
		d.AllowedOrigins = []string{"*"}
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/rooms", a.CreateRoom)
	r.Get("/rooms/{code}", a.RoomState)
	r.Get("/rooms/{code}/qr", a.RoomQR)
	r.Get("/rooms/{code}/results", a.RoomResults)
	r.Get("/ws", ws.Handler(d.Hub, ws.Options{Logger: d.Logger, OriginPatterns: originPatterns(d.AllowedOrigins)}))

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(a.requireAdmin)
		r.Post("/rooms/{code}/roster", a.UploadRoster)
	})
	return r
}
