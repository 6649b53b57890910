// Package handler implements the HTTP and WebSocket surface of the wine
// catalogue. All handlers are methods on Server; routes are registered by
// Handler. Methods are split into files by concern (wine.go, photo.go,
// live.go) but share the same Server struct.
package handler

import (
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
	"github.com/pkordes/wine-catalog/backend/internal/live"
	"github.com/pkordes/wine-catalog/backend/internal/store"
)

// WineServicer defines the catalogue operations the handlers depend on.
// Defining the interface here (in the consumer package) lets handler tests
// inject a mock without a store or database.
type WineServicer interface {
	Create(ctx context.Context) (domain.Wine, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Wine, error)
	Save(ctx context.Context, w domain.Wine) error
	Delete(ctx context.Context, w domain.Wine) error
	Filter(text string) ([]domain.Wine, error)
	Observe() (*live.Subscription[[]domain.Wine], error)
	Select(id uuid.UUID) (*live.Subscription[store.Lookup], error)
}

// PhotoLibrary is the photo file storage the handlers depend on.
// *photo.Library satisfies it.
type PhotoLibrary interface {
	Save(w domain.Wine, r io.Reader) error
	Remove(w domain.Wine) error
	Open(w domain.Wine) (*os.File, error)
	Scaled(w domain.Wine, destW, destH int) (image.Image, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	wines    WineServicer
	photos   PhotoLibrary
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer constructs the Server. allowedOrigins restricts which browser
// origins may open live connections; an empty list allows all.
func NewServer(wines WineServicer, photos PhotoLibrary, allowedOrigins []string, log *slog.Logger) *Server {
	return &Server{
		wines:  wines,
		photos: photos,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins, log),
		},
	}
}

// Handler returns a chi router with every API route registered.
func Handler(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/wines", func(r chi.Router) {
		r.Get("/", s.ListWines)
		r.Post("/", s.CreateWine)
		r.Get("/live", s.LiveWines)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetWine)
			r.Put("/", s.SaveWine)
			r.Delete("/", s.DeleteWine)
			r.Put("/photo", s.PutWinePhoto)
			r.Get("/photo", s.GetWinePhoto)
			r.Get("/live", s.LiveWine)
		})
	})
	return r
}

func checkOrigin(allowed []string, log *slog.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin.
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, a := range allowed {
			if origin == a {
				return true
			}
		}
		log.Warn("websocket origin rejected", "origin", origin)
		return false
	}
}
