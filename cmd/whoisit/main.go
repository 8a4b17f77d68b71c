package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/whoisit/internal/authrequest"
	"github.com/dropDatabas3/whoisit/internal/config"
	mw "github.com/dropDatabas3/whoisit/internal/http/middlewares"
	"github.com/dropDatabas3/whoisit/internal/login"
	"github.com/dropDatabas3/whoisit/internal/metrics"
	"github.com/dropDatabas3/whoisit/internal/observability/logger"
	"github.com/dropDatabas3/whoisit/internal/provider"
	"github.com/dropDatabas3/whoisit/internal/provider/github"
	"github.com/dropDatabas3/whoisit/internal/provider/google"
	"github.com/dropDatabas3/whoisit/internal/registration"
)

func main() {
	root := &cobra.Command{
		Use:   "whoisit",
		Short: "OAuth2/OIDC login callback service",
	}

	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the login service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config YAML (default $CONFIG_PATH or configs/config.yaml)")

	root.AddCommand(serve)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cfgPath string) error {
	// .env primero: los secrets de las registrations se expanden del entorno.
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded .env")
	}

	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "whoisit",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := metrics.RegisterLogin(nil); err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.With(mw.WithNoStore()).Get("/login/oauth2/start/{registrationId}", a.startLogin)
	router.Get("/me", a.whoAmI)

	// El filter envuelve al router completo: los callbacks no son rutas chi,
	// los intercepta antes del routing.
	handler := mw.Chain(router,
		mw.WithRecover(),
		mw.WithRequestContext(),
		a.filter.Wrap,
	)

	log.Info("whoisit ready",
		logger.String("addr", cfg.Server.Addr),
		logger.String("store", cfg.Store.Kind),
		logger.Int("registrations", len(cfg.Registrations)),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// app agrupa el wiring del servicio.
type app struct {
	cfg           *config.Config
	registrations *registration.InMemoryRepository
	store         authrequest.Store
	filter        *login.Filter
	sessions      *sessionCache
	closers       []func()
}

func (a *app) close() {
	for _, fn := range a.closers {
		fn()
	}
}

func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, sessions: newSessionCache()}

	regs := make([]registration.ClientRegistration, 0, len(cfg.Registrations))
	for _, r := range cfg.Registrations {
		redirect := r.RedirectURI
		if redirect == "" {
			redirect = "{baseUrl}" + login.DefaultCallbackPattern
		}
		regs = append(regs, registration.ClientRegistration{
			ID:               r.ID,
			Provider:         r.Provider,
			ClientID:         r.ClientID,
			ClientSecret:     r.ClientSecret,
			AuthorizationURI: r.AuthorizationURI,
			TokenURI:         r.TokenURI,
			UserInfoURI:      r.UserInfoURI,
			RedirectURI:      redirect,
			Scopes:           r.Scopes,
		})
	}
	a.registrations = registration.NewInMemoryRepository(regs...)

	ttl, err := cfg.RequestTTL()
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Kind {
	case "redis":
		rs, err := authrequest.NewRedisStore(authrequest.RedisConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
			TTL:      ttl,
			Seal:     cfg.Store.Redis.Seal,
		})
		if err != nil {
			return nil, err
		}
		a.store = rs
		a.closers = append(a.closers, func() { _ = rs.Close() })
	case "postgres":
		ps, err := authrequest.OpenPGStore(context.Background(), cfg.Store.Postgres.DSN, ttl)
		if err != nil {
			return nil, err
		}
		a.store = ps
		a.closers = append(a.closers, ps.Close)
	default:
		a.store = authrequest.NewMemoryStore(ttl)
	}

	registry := provider.NewRegistry()
	registry.Register("github", github.New)
	registry.Register("google", google.New)

	matcher, err := login.NewCallbackMatcher(cfg.Login.CallbackPattern)
	if err != nil {
		return nil, err
	}

	filter, err := login.NewFilter(login.FilterDeps{
		Matcher:       matcher,
		Authenticator: login.NewAuthenticator(a.store, a.registrations, provider.NewEngine(registry)),
		Session:       login.CookieSessionResolver(cfg.Login.SessionCookie),
		BaseURL:       cfg.Server.BaseURL,
		OnSuccess:     a.onLoginSuccess,
		OnFailure:     a.onLoginFailure,
	})
	if err != nil {
		return nil, err
	}
	a.filter = filter

	return a, nil
}
