// Package app wires configuration, storage and the domain services into a
// runnable service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bookingflow/internal/config"
	"bookingflow/internal/database"
	"bookingflow/internal/domain/appointment"
	"bookingflow/internal/domain/booking"
	"bookingflow/internal/domain/catalog"
	"bookingflow/internal/events"
	"bookingflow/internal/middleware"
	"bookingflow/internal/pkg/jwt"
	"bookingflow/internal/pkg/response"
)

type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *gorm.DB
	Bookings     *booking.Service
	Appointments *appointment.Service
	Catalog      *catalog.Repository
	Events       events.Publisher
	Tokens       *jwt.Service

	redis *events.RedisPublisher
}

// Models is every table the service owns.
func Models() []any {
	return append(booking.Models(), &appointment.Appointment{}, &catalog.Product{})
}

// New connects to the database, migrates the schema and builds the services.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db, Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewWithDB(cfg, logger, db)
}

// NewWithDB builds the services on an already migrated database.
func NewWithDB(cfg *config.Config, logger *slog.Logger, db *gorm.DB) (*App, error) {
	a := &App{Config: cfg, Logger: logger, DB: db}

	a.Events = events.NewLogPublisher(logger)
	if cfg.RedisURL != "" {
		rp, err := events.NewRedisPublisherFromURL(cfg.RedisURL, cfg.EventsChannel)
		if err != nil {
			return nil, err
		}
		a.redis = rp
		a.Events = rp
	}

	if cfg.AuthEnabled() {
		a.Tokens = jwt.New(cfg.JWTSecret, 24*time.Hour)
	}

	store := booking.NewRepository(db)
	a.Catalog = catalog.NewRepository(db)
	a.Appointments = appointment.NewService(appointment.NewRepository(db), a.Events, logger)
	a.Bookings = booking.NewService(booking.Deps{
		Store:        store,
		Sagas:        booking.NewSagaRepository(db),
		References:   booking.NewReferenceGenerator(store.ReferenceExists, cfg.ReferenceMaxAttempts),
		Appointments: a.Appointments,
		Catalog:      a.Catalog,
		Events:       a.Events,
		Logger:       logger,
		Retry: booking.RetryPolicy{
			Attempts: cfg.AppointmentRetryAttempts,
			Initial:  cfg.AppointmentRetryInitial,
			Max:      cfg.AppointmentRetryMax,
		},
	})
	return a, nil
}

// Router builds the gin engine with every route of the API.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(a.Logger))
	r.Use(middleware.CORS(a.Config.CORSAllowedOrigins))

	r.GET("/health", a.health)

	api := r.Group("/api")
	admin := middleware.AdminAuth(a.Tokens)
	booking.NewHandler(a.Bookings, a.Logger).RegisterRoutes(api, admin)
	appointment.NewHandler(a.Appointments, a.Bookings, a.Logger).RegisterRoutes(api, admin)
	return r
}

func (a *App) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	sqlDB, err := a.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if a.redis != nil {
		checks["events"] = "ok"
		if err := a.redis.Ping(ctx); err != nil {
			checks["events"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if status != http.StatusOK {
		response.ErrorWithDetails(c, status, "UNHEALTHY", "Dependency check failed", checks)
		return
	}
	response.Success(c, status, checks)
}

func (a *App) Close() error {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
