package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mind-engage/pruefungstrainer/internal/auth"
	authmw "github.com/mind-engage/pruefungstrainer/internal/auth/middleware"
	"github.com/mind-engage/pruefungstrainer/internal/config"
	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/rbac"
	"github.com/mind-engage/pruefungstrainer/internal/results"
	"github.com/mind-engage/pruefungstrainer/internal/session"
	"github.com/mind-engage/pruefungstrainer/internal/storage"
	syncx "github.com/mind-engage/pruefungstrainer/internal/sync"
)

// Deps are the collaborators the HTTP surface is built from. DB is only
// used for readiness; DB, Blobs and Events may be nil.
type Deps struct {
	Config    config.Config
	Log       zerolog.Logger
	Auth      *authmw.AuthService
	Library   *content.Library
	Blobs     storage.BlobStore
	Sessions  *session.Manager
	Results   results.Store
	DB        *sql.DB
	Events    *syncx.EventRepo
	TimerTick time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.TimerTick <= 0 {
		d.TimerTick = time.Second
	}
	mods := d.Sessions.Modules()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(d.Log), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/auth/guest", auth.GuestLoginHandler(d.Auth, d.Config))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Config.AdminUser, d.Config.AdminPassHash))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		// Long-lived; kept outside the request timeout.
		pr.With(rbac.Require(rbac.PermSessionPlay)).
			Get("/sessions/{sessionID}/timer/ws", TimerStreamHandler(d.Sessions, d.TimerTick))

		pr.Group(func(tr chi.Router) {
			tr.Use(middleware.Timeout(30 * time.Second))

			tr.With(rbac.Require(rbac.PermCatalogView)).Get("/modules", ListModulesHandler(mods))
			tr.With(rbac.Require(rbac.PermCatalogView)).Get("/catalog", CatalogHandler(d.Library, mods))

			tr.With(rbac.Require(rbac.PermSessionPlay)).Route("/sessions", func(sr chi.Router) {
				MountSessions(sr, d.Sessions)
			})

			tr.With(rbac.RequireAny(rbac.PermResultsViewOwn, rbac.PermResultsViewAll)).
				Get("/results", ListResultsHandler(d.Results))
			tr.With(rbac.RequireAny(rbac.PermResultsViewOwn, rbac.PermResultsViewAll)).
				Get("/results/{resultID}", GetResultHandler(d.Results))

			tr.With(rbac.Require(rbac.PermPreferencesEdit)).
				Put("/me/preferences/timer", SetTimerPreferenceHandler(d.Sessions))

			if d.Blobs != nil {
				tr.With(rbac.Require(rbac.PermContentManage)).Route("/admin/content", func(ar chi.Router) {
					MountContent(ar, d.Blobs, d.Library, d.Events, d.Log)
				})
			}
			if d.Events != nil {
				tr.With(rbac.Require(rbac.PermResultsViewAll)).
					Get("/admin/events", ListEventsHandler(d.Events))
			}
		})
	})
	return r
}
