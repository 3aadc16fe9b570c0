package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thaitruongdao01-afk/saintpaul/api/controllers"
	"github.com/thaitruongdao01-afk/saintpaul/api/middleware"
	"github.com/thaitruongdao01-afk/saintpaul/internal/permissions"
	"github.com/thaitruongdao01-afk/saintpaul/internal/preferences"
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/internal/views"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/redis"
)

// Deps are the services the router hands to its controllers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Storage     controllers.Pinger
	Redis       *redis.Client
	Sessions    *session.Registry
	Views       *views.Registry
	Preferences *preferences.Registry
	Users       controllers.UserCreator
	Gatherer    prometheus.Gatherer
}

var adminOnly = permissions.Policy{Roles: []enums.Role{enums.RoleAdmin}}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	checks := []controllers.ReadyCheck{{Name: "storage", Pinger: d.Storage}}
	if d.Redis != nil {
		checks = append(checks, controllers.ReadyCheck{Name: "redis", Pinger: d.Redis})
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, checks...))
	})

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	loginLimit := func(next http.Handler) http.Handler { return next }
	if d.Redis != nil {
		loginLimit = middleware.AuthRateLimit(middleware.LoginRateLimitPolicy(cfg.AuthRateLimit), d.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SessionContext(cfg.Session, d.Sessions, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.PublicOnly(cfg.Session, logg), loginLimit).Post("/login", controllers.AuthLogin(cfg.Session, logg))
			r.Post("/logout", controllers.AuthLogout(d.Sessions, cfg.Session, logg))
			r.Get("/session", controllers.AuthSession(cfg.Session, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated(cfg.Session, logg))

			r.Get("/permissions/actions", controllers.PermissionActions(logg))

			r.Route("/preferences/sidebar", func(r chi.Router) {
				prefs := d.Preferences
				r.Get("/", controllers.Sidebar(prefs, logg, nil))
				r.Post("/toggle", controllers.Sidebar(prefs, logg, controllers.SidebarToggle))
				r.Post("/open", controllers.Sidebar(prefs, logg, controllers.SidebarOpen))
				r.Post("/close", controllers.Sidebar(prefs, logg, controllers.SidebarClose))
				r.Post("/toggle-compact", controllers.Sidebar(prefs, logg, controllers.SidebarToggleCompact))
				r.Post("/reset", controllers.Sidebar(prefs, logg, controllers.SidebarReset))

				r.Delete("/groups", controllers.Sidebar(prefs, logg, controllers.SidebarCollapseAll))
				r.Post("/groups/{groupID}/toggle", controllers.Sidebar(prefs, logg, controllers.SidebarToggleGroup))
				r.Post("/groups/{groupID}/expand", controllers.Sidebar(prefs, logg, controllers.SidebarExpandGroup))
				r.Post("/groups/{groupID}/collapse", controllers.Sidebar(prefs, logg, controllers.SidebarCollapseGroup))

				r.Delete("/pins", controllers.Sidebar(prefs, logg, controllers.SidebarClearPins))
				r.Post("/pins/{itemID}/toggle", controllers.Sidebar(prefs, logg, controllers.SidebarTogglePin))
				r.Post("/pins/{itemID}/pin", controllers.Sidebar(prefs, logg, controllers.SidebarPin))
				r.Post("/pins/{itemID}/unpin", controllers.Sidebar(prefs, logg, controllers.SidebarUnpin))
			})

			r.Route("/views/{view}", func(r chi.Router) {
				r.Use(middleware.RequireAccessFunc(viewPolicy, logg))
				reg := d.Views
				r.Get("/", controllers.View(reg, logg, nil))
				r.Post("/page", controllers.View(reg, logg, controllers.ViewGoToPage))
				r.Post("/next", controllers.View(reg, logg, controllers.ViewNextPage))
				r.Post("/previous", controllers.View(reg, logg, controllers.ViewPreviousPage))
				r.Post("/first", controllers.View(reg, logg, controllers.ViewFirstPage))
				r.Post("/last", controllers.View(reg, logg, controllers.ViewLastPage))
				r.Post("/page-size", controllers.View(reg, logg, controllers.ViewPageSize))
				r.Post("/sort", controllers.View(reg, logg, controllers.ViewSort))
				r.Post("/search", controllers.View(reg, logg, controllers.ViewSearch))
				r.Post("/refresh", controllers.View(reg, logg, controllers.ViewRefresh))
				r.Post("/reset", controllers.View(reg, logg, controllers.ViewReset))
				r.Patch("/filters", controllers.View(reg, logg, controllers.ViewUpdateFilters))
				r.Delete("/filters", controllers.View(reg, logg, controllers.ViewClearFilters))
				r.Delete("/filters/{key}", controllers.View(reg, logg, controllers.ViewRemoveFilter))
			})

			r.With(middleware.RequireAccess(adminOnly, logg)).Post("/users", controllers.UsersCreate(d.Users, logg))
		})
	})

	return r
}

func viewPolicy(r *http.Request) (permissions.Policy, error) {
	name := chi.URLParam(r, "view")
	def, ok := views.Lookup(name)
	if !ok {
		return permissions.Policy{}, pkgerrors.New(pkgerrors.CodeNotFound, "unknown view").WithDetails(map[string]any{"view": name})
	}
	return def.Policy, nil
}
