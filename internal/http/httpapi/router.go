package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"genstudio/internal/http/handlers"
	"genstudio/internal/middleware"
)

// Options configures the router around the handlers.
type Options struct {
	Logger             zerolog.Logger
	CORSAllowedOrigins []string
	Extractors         []middleware.CredentialExtractor
	CountryLookup      middleware.CountryLookup
	RateLimitPerMin    int
	AdminUsername      string
	AdminPassword      string
	// StaticDir serves mirrored images under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
		middleware.Country(opts.CountryLookup),
		middleware.Identity(opts.Extractors...),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Get("/v1/pricing", app.Pricing)
	r.Post("/v1/billing/webhook", app.StripeWebhook)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/google", app.AuthGoogleVerify)
		r.Post("/dev-login", app.DevLogin)
		r.Get("/dev-session", app.DevSession)
		r.Delete("/dev-session", app.DevLogout)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireIdentity)
		r.Get("/v1/me", app.Me)
		r.Post("/v1/me/complete-profile", app.CompleteProfile)
		r.With(middleware.RateLimit(opts.RateLimitPerMin, 0)).Post("/v1/generate", app.Generate)
		r.Get("/v1/generations", app.Generations)
		r.Post("/v1/billing/checkout", app.CreateCheckout)
	})

	if opts.AdminUsername != "" && opts.AdminPassword != "" {
		r.With(chimw.BasicAuth("admin", map[string]string{opts.AdminUsername: opts.AdminPassword})).
			Get("/v1/admin/stats", app.AdminStats)
	}

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	return r
}
