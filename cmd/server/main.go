package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nousware/authkit/authgate"
	"github.com/nousware/authkit/core"
	"github.com/nousware/authkit/csrf"
	"github.com/nousware/authkit/identity"
	"github.com/nousware/authkit/modules/authn"
	"github.com/nousware/authkit/oauth"
	"github.com/nousware/authkit/pkg/config"
	"github.com/nousware/authkit/pkg/cookie"
	"github.com/nousware/authkit/pkg/email"
	"github.com/nousware/authkit/pkg/httpserver"
	"github.com/nousware/authkit/pkg/logger"
	"github.com/nousware/authkit/pkg/pg"
	appredis "github.com/nousware/authkit/pkg/redis"
	"github.com/nousware/authkit/routes"
	"github.com/nousware/authkit/session"
	"github.com/nousware/authkit/token"
)

type appConfig struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	AppName     string `env:"APP_NAME" envDefault:"authkit"`

	// AppURL is the backend's public base URL, used in emailed links.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	CORSOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`
	CookieSecrets []string      `env:"COOKIE_SECRETS,required"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	// Google login stays off unless all three are set.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	HTTP  httpserver.Config
	PG    pg.Config
	Redis appredis.Config
	Email email.Config
	Authn authn.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Environment, cfg.AppName),
	)
	logger.SetAsDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

// routeTable is the whole permission surface as data. Order matters:
// public reads and the two authenticated mutations come before the
// broad admin rules that would otherwise swallow them. Resource
// handlers are mounted by the services that own them; the table gates
// the paths either way.
func routeTable() routes.Table {
	return routes.Table{
		routes.Allow(http.MethodGet, "/healthz", routes.Public()),

		routes.Allow(http.MethodPost, "/api/auth/register", routes.Public()),
		routes.Allow(http.MethodGet, "/api/auth/verify", routes.Public()),
		routes.Allow(http.MethodPost, "/api/auth/resend-verification", routes.Public()),
		routes.Allow(http.MethodPost, "/api/auth/login", routes.Public()),
		routes.Allow(http.MethodGet, "/api/auth/login/google", routes.Public()),
		routes.Allow(http.MethodGet, "/api/auth/callback/google", routes.Public()),
		routes.Allow(http.MethodPost, "/api/auth/forgot-password", routes.Public()),
		routes.Allow(http.MethodPost, "/api/auth/reset-password", routes.Public()),
		routes.Allow(http.MethodPost, "/api/auth/logout", routes.Public()),
		routes.Allow(http.MethodGet, "/api/auth/me", routes.Public()),
		routes.AllowAll("/api/auth/*", routes.Authenticated()),

		routes.Allow(http.MethodGet, "/api/services/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/categories/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/faqs/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/testimonials/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/posts/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/comments/*", routes.Public()),
		routes.Allow(http.MethodGet, "/api/tags/*", routes.Public()),

		routes.AllowAll("/api/services/*", routes.Role(identity.RoleAdmin)),
		routes.AllowAll("/api/categories/*", routes.Role(identity.RoleAdmin)),
		routes.AllowAll("/api/faqs/*", routes.Role(identity.RoleAdmin)),

		// Anyone logged in may submit; editing and removal stay admin.
		routes.Allow(http.MethodPost, "/api/testimonials/*", routes.Authenticated()),
		routes.Allow(http.MethodPost, "/api/posts/*", routes.Authenticated()),
		routes.Allow(http.MethodPost, "/api/comments/*", routes.Authenticated()),
		routes.AllowAll("/api/testimonials/*", routes.Role(identity.RoleAdmin)),
		routes.AllowAll("/api/posts/*", routes.Role(identity.RoleAdmin)),
		routes.AllowAll("/api/comments/*", routes.Role(identity.RoleAdmin)),

		routes.Allow(http.MethodPost, "/api/contact", routes.Public()),
		routes.AllowAll("/api/contact/*", routes.Role(identity.RoleAdmin)),

		routes.AllowAll("/api/users/me/*", routes.Authenticated()),
		routes.AllowAll("/api/users/*", routes.Role(identity.RoleAdmin)),
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	redisClient, err := appredis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cookies, err := cookie.New(cfg.CookieSecrets, cookie.WithSecure(cfg.SecureCookies))
	if err != nil {
		return err
	}

	var sender email.Sender
	if cfg.Email.PostmarkServerToken != "" {
		if sender, err = email.NewPostmarkSender(cfg.Email); err != nil {
			return err
		}
	} else {
		log.Warn("postmark not configured, writing emails to disk",
			slog.String("dir", cfg.Email.DevOutputDir))
		sender = email.NewDevSender(cfg.Email.DevOutputDir)
	}

	identities := identity.NewPostgresStore(pool)
	notifier := authn.NewNotifier(sender, cfg.AppURL, cfg.Authn.FrontendURL, cfg.AppName)
	lifecycle := token.NewLifecycle(token.NewPostgresStore(pool), identities, notifier,
		token.WithLifecycleLogger(log),
	)
	auth := authgate.New(identities, lifecycle, authgate.WithLogger(log))
	sessions := session.NewManager(session.NewRedisStore(redisClient), cookies,
		session.WithTTL(cfg.SessionTTL),
		session.WithSecureCookies(cfg.SecureCookies),
		session.WithRotationHook(func(w http.ResponseWriter, s *session.Session) {
			csrf.SetCookie(w, s.CSRFToken, cfg.SecureCookies)
		}),
		session.WithManagerLogger(log),
	)

	var google *oauth.Service
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" && cfg.GoogleRedirectURL != "" {
		google = oauth.New(oauth.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, oauth.NewRedisStateStore(redisClient))
	} else {
		log.Warn("google login disabled, credentials not configured")
	}

	module := authn.New(cfg.Authn, auth, lifecycle, sessions, google, authn.WithLogger(log))

	table := routeTable()

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrf.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(session.Middleware(sessions))
	r.Use(csrf.Middleware(
		csrf.WithSecure(cfg.SecureCookies),
		csrf.WithExemptPaths("/api/contact", "/healthz"),
	))
	r.Use(routes.Middleware(table, auth))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := pool.Ping(req.Context()); err != nil {
			core.Render(w, req, core.JSONError(core.NewHTTPError(http.StatusServiceUnavailable, "postgres_unreachable")))
			return
		}
		if err := redisClient.Ping(req.Context()).Err(); err != nil {
			core.Render(w, req, core.JSONError(core.NewHTTPError(http.StatusServiceUnavailable, "redis_unreachable")))
			return
		}
		core.Render(w, req, core.JSON(map[string]string{"status": "ok"}))
	})
	r.Mount("/api/auth", module.Handle())

	srv := httpserver.New(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}
