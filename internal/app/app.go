// Package app wires configuration into a running HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/api/option"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/appointments"
	"healthreach-server/internal/blob"
	"healthreach-server/internal/config"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/middleware"
	"healthreach-server/internal/notifications"
	"healthreach-server/internal/push"
	"healthreach-server/internal/routes"
	"healthreach-server/internal/store"
)

// App holds every long-lived collaborator of the server.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Store    store.DocumentStore
	Auth     *identity.FirebaseAuth
	Sessions *identity.SessionManager
	Sink     activity.Sink
	Recorder activity.Recorder
	Uploader blob.Uploader
	Notifier *notifications.Service
	Workflow *appointments.Workflow
	Registry *prometheus.Registry
}

// NewFirebaseApp initialises the Firebase Admin SDK from the configured
// credentials file, or from application default credentials.
func NewFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase: %w", err)
	}
	return fbApp, nil
}

// OpenStore opens the configured document store driver.
func OpenStore(ctx context.Context, cfg *config.Config, fbApp *firebase.App) (store.DocumentStore, error) {
	switch cfg.Store.Driver {
	case "firestore":
		client, err := fbApp.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect to firestore: %w", err)
		}
		return store.NewFirestoreStore(client), nil
	case "mysql", "postgres":
		s, err := store.OpenSQL(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", cfg.Store.Driver, err)
		}
		return s, nil
	case "memory":
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// New builds the application. Close must be called to release it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	policy, err := appointments.ParsePolicy(cfg.TransitionPolicy)
	if err != nil {
		return nil, err
	}

	fbApp, err := NewFirebaseApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	docs, err := OpenStore(ctx, cfg, fbApp)
	if err != nil {
		return nil, err
	}

	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("initialise firebase auth: %w", err)
	}
	fbAuth := identity.NewFirebaseAuth(authClient, docs, cfg.Firebase.WebAPIKey, cfg.CollaboratorTimeout)

	var sender push.Sender = push.NewLogSender(log)
	if cfg.Push.Enabled {
		messagingClient, err := fbApp.Messaging(ctx)
		if err != nil {
			docs.Close()
			return nil, fmt.Errorf("initialise firebase messaging: %w", err)
		}
		sender = push.NewFCMSender(messagingClient)
	}

	var sink activity.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		sink = activity.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	}

	var uploader blob.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err := blob.NewS3Uploader(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.PublicBaseURL)
		if err != nil {
			log.WithComponent("app").WithError(err).Warn("photo uploads disabled")
		} else {
			uploader = s3Uploader
		}
	}

	recorder := activity.NewStoreRecorder(docs, sink, log, cfg.CollaboratorTimeout)
	notifier := notifications.NewService(docs, sender, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    docs,
		Auth:     fbAuth,
		Sessions: identity.NewSessionManager(cfg.Session.Secret, time.Duration(cfg.Session.TTLMinutes)*time.Minute),
		Sink:     sink,
		Recorder: recorder,
		Uploader: uploader,
		Notifier: notifier,
		Workflow: appointments.NewWorkflow(docs, notifier, recorder, policy, log),
		Registry: registry,
	}, nil
}

// Router builds the gin engine with middleware and routes.
func (a *App) Router() *gin.Engine {
	if a.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(a.Log))
	router.Use(middleware.NewMetrics(a.Registry).Handler())

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{a.Config.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestTimeout(a.Config.CollaboratorTimeout))

	routes.SetupRoutes(router, routes.Dependencies{
		Store:         a.Store,
		Verifier:      &identity.ChainVerifier{Sessions: a.Sessions, Firebase: a.Auth},
		Firebase:      a.Auth,
		Accounts:      a.Auth,
		Sessions:      a.Sessions,
		Uploader:      a.Uploader,
		Recorder:      a.Recorder,
		Notifications: a.Notifier,
		Workflow:      a.Workflow,
		Log:           a.Log,
		Gatherer:      a.Registry,
	})
	return router
}

// Server returns the HTTP server for the router.
func (a *App) Server() *http.Server {
	return &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close releases the store and flushes the activity sink.
func (a *App) Close() {
	if a.Sink != nil {
		if err := a.Sink.Close(); err != nil {
			a.Log.WithComponent("app").WithError(err).Warn("failed to close activity sink")
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Log.WithComponent("app").WithError(err).Warn("failed to close document store")
	}
}
