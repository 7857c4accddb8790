package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"challenge_backend/internal/config"
	"challenge_backend/internal/controller"
	"challenge_backend/internal/repository"
	"challenge_backend/internal/service"
	"challenge_backend/pkg/configwatcher"
	"challenge_backend/pkg/database"
	"challenge_backend/pkg/logger"
	"challenge_backend/pkg/monitoring"
	"challenge_backend/pkg/security"
	"challenge_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user       *repository.UserRepository
	friendship *repository.FriendshipRepository
	challenge  *repository.ChallengeRepository
	submission *repository.SubmissionRepository
	device     *repository.DeviceRepository
	contact    *repository.ContactRepository
}

type services struct {
	auth         *service.AuthService
	user         *service.UserService
	friendship   *service.FriendshipService
	challenge    *service.ChallengeService
	device       *service.DeviceService
	contact      *service.ContactService
	notification *service.NotificationService
	reminder     *service.ReminderService
	pusher       service.Pusher
}

type controllers struct {
	health    *controller.HealthController
	auth      *controller.AuthController
	user      *controller.UserController
	friend    *controller.FriendController
	challenge *controller.ChallengeController
	device    *controller.DeviceController
	contact   *controller.ContactController
}

// externals are the collaborators that talk to third parties. Tests swap them
// for in-memory fakes.
type externals struct {
	photos   service.PhotoStore
	pusher   service.Pusher
	verifier service.IdentityVerifier
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		friendship: repository.NewFriendshipRepository(db, rdb),
		challenge:  repository.NewChallengeRepository(db),
		submission: repository.NewSubmissionRepository(db),
		device:     repository.NewDeviceRepository(db),
		contact:    repository.NewContactRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, ext externals) *services {
	s := &services{pusher: ext.pusher}

	s.notification = service.NewNotificationService(repos.device, ext.pusher, cfg.Notification.Timeout)
	s.auth = service.NewAuthService(repos.user, ext.verifier, &cfg.JWT)
	s.user = service.NewUserService(repos.user, ext.photos)
	s.friendship = service.NewFriendshipService(repos.friendship, repos.user, s.notification)
	s.challenge = service.NewChallengeService(repos.challenge, repos.submission, repos.user, ext.photos, s.notification)
	s.device = service.NewDeviceService(repos.device)
	s.contact = service.NewContactService(repos.contact, s.friendship)
	s.reminder = service.NewReminderService(repos.challenge, s.notification, cfg.Challenge.EndingSoonWindow)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		health:    controller.NewHealthController(db, rdb),
		auth:      controller.NewAuthController(s.auth),
		user:      controller.NewUserController(s.user),
		friend:    controller.NewFriendController(s.friendship),
		challenge: controller.NewChallengeController(s.challenge),
		device:    controller.NewDeviceController(s.device),
		contact:   controller.NewContactController(s.contact),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(tracing.ServiceName))
	}

	router.Use(monitoring.MetricsMiddleware())
}

// assemble wires repositories, services, controllers and routes on top of
// already opened connections.
func assemble(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ext externals) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	app.services = app.initServices(repos, cfg, ext)
	controllers := app.initControllers(app.services, db, rdb)

	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == config.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(logger.ApplyConfig)
	app.RegisterConfigCallback(app.services.reminder.ApplyConfig)

	return app
}

func NewApp(cfg *config.Config) (*App, error) {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	gin.SetMode(cfg.Server.Mode)

	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}, nil
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		return nil, err
	}

	storage, err := service.NewStorageService(cfg)
	if err != nil {
		return nil, err
	}

	pusher, err := service.NewPusher(context.Background(), &cfg.Notification)
	if err != nil {
		return nil, err
	}

	monitoring.Init()

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer(context.Background(), tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			pusher.Close()
			return nil, err
		}
	}

	app := assemble(cfg, db, rdb, externals{
		photos:   storage,
		pusher:   pusher,
		verifier: &service.GoogleVerifier{ClientID: cfg.Google.ClientID},
	})
	app.tracer = tp

	return app, nil
}

func (a *App) startBackgroundTasks(ctx context.Context) {
	go a.services.reminder.Start(ctx, a.Config.Challenge.ReminderInterval)

	go func() {
		err := configwatcher.Watch(ctx, a.Config.File, func(cfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

func (a *App) Run() error {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.startBackgroundTasks(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	stop()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if cerr := a.services.pusher.Close(); cerr != nil {
		logger.Log.Warn("Failed to close push transport", zap.Error(cerr))
	}
	if a.tracer != nil {
		if terr := a.tracer.Shutdown(shutdownCtx); terr != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(terr))
		}
	}

	logger.Log.Info("Server exiting")
	return err
}
