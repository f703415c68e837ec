package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	api "github.com/clipforge/clipforge/api/v1alpha1"
	"github.com/clipforge/clipforge/internal/auth"
	"github.com/clipforge/clipforge/internal/config"
	handlers "github.com/clipforge/clipforge/internal/handlers/v1alpha1"
	"github.com/clipforge/clipforge/internal/pipeline"
	"github.com/clipforge/clipforge/internal/service"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/internal/util"
	"github.com/clipforge/clipforge/pkg/log"
	"github.com/clipforge/clipforge/pkg/metrics"
	"github.com/clipforge/clipforge/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

type Server struct {
	cfg      *config.Config
	db       *gorm.DB
	store    store.Store
	listener net.Listener
}

// New returns a new instance of a clipforge server.
func New(
	cfg *config.Config,
	db *gorm.DB,
	store store.Store,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		db:       db,
		store:    store,
		listener: listener,
	}
}

func oapiErrorHandler(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.Error{Message: fmt.Sprintf("API Error: %s", message)})
}

// NewRouter builds the HTTP handler chain around h.
func NewRouter(cfg *config.Config, h *handlers.ServiceHandler, authenticator auth.Authenticator, metricMiddleware *metrics.Middleware) (http.Handler, error) {
	swagger, err := api.GetSwagger()
	if err != nil {
		return nil, fmt.Errorf("failed to load swagger spec: %w", err)
	}
	// Skip server name validation
	swagger.Servers = nil

	oapiOpts := oapimiddleware.Options{
		ErrorHandler: oapiErrorHandler,
	}

	router := chi.NewRouter()
	router.Use(
		util.GatewayApiRewrite(cfg.Service.PathPrefix),
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "PATCH", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		log.Logger(zap.L(), "http"),
		chiMiddleware.Recoverer,
	)

	// health checks carry no credentials
	handlers.HealthFromMux(h, router)

	router.Group(func(r chi.Router) {
		r.Use(
			authenticator.Authenticator,
			oapimiddleware.OapiRequestValidatorWithOptions(swagger, &oapiOpts),
		)
		handlers.HandlerFromMux(h, r)
	})

	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	objects, err := NewObjectStore(ctx, s.cfg)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	producer, err := NewEventProducer(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to create event producer: %w", err)
	}
	defer func() {
		_ = producer.Close()
	}()

	runnerOpts := []pipeline.RunnerOption{pipeline.WithEventWriter(producer)}
	if objects != nil {
		runnerOpts = append(runnerOpts, pipeline.WithObjectStore(objects))
	}
	runner := pipeline.NewRunner(s.store, PipelineOptions(s.cfg), runnerOpts...)
	queue, release, err := NewJobQueue(ctx, s.cfg, s.db, s.store, runner)
	if err != nil {
		return fmt.Errorf("failed to create river client: %w", err)
	}
	defer release()

	jobService := service.NewJobService(s.store, queue,
		service.WithEventWriter(producer),
		service.WithClipPolicy(PipelineOptions(s.cfg).Policy),
		service.WithDefaultDuration(s.cfg.Pipeline.DefaultDuration),
	)
	uploadService := service.NewUploadService(objects, s.cfg.Service.MaxUploadBytes)

	h := handlers.NewServiceHandler(jobService, uploadService,
		handlers.WithAllowedOrigins(s.cfg.Service.AllowedOrigins),
		handlers.WithHealthCheck(func(r *http.Request) error { return s.store.Ping(r.Context()) }),
	)

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegister(prometheus.DefaultRegisterer)

	router, err := NewRouter(s.cfg, h, authenticator, metricMiddleware)
	if err != nil {
		return err
	}
	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return queue.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", gctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
		return nil
	})
	g.Go(func() error {
		zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
		if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return g.Wait()
}
