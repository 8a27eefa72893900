package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mw "picquest/internal/middleware"
)

const uploadTimeout = 5 * time.Minute

type RouterConfig struct {
	Pictures      *PictureHandler
	WebSocket     http.Handler // optional
	UploadsDir    string       // optional; local storage root
	UploadsPrefix string       // public prefix for UploadsDir, default /uploads
	CORSOrigins   []string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLog)
	r.Use(middleware.Recoverer)
	r.Use(mw.Cors(cfg.CORSOrigins))

	if cfg.UploadsDir != "" {
		prefix := "/" + strings.Trim(cfg.UploadsPrefix, "/")
		if prefix == "/" {
			prefix = "/uploads"
		}
		r.Handle(prefix+"/*", StaticFiles(prefix, cfg.UploadsDir))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/pictures", cfg.Pictures.List)
		r.Get("/search", cfg.Pictures.Search)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(uploadTimeout))
			r.Post("/upload", cfg.Pictures.Upload)
			r.Post("/upload/batch", cfg.Pictures.UploadBatch)
		})
	})

	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket)
	}
	r.Get("/healthz", cfg.Pictures.Health)

	return r
}
