package app

import (
	"context"
	"reflect"

	"ineed/config"
	"ineed/internal/controllers"
	"ineed/internal/database"
	"ineed/internal/events"
	"ineed/internal/handlers/middleware"
	"ineed/internal/jobs"
	"ineed/internal/repositories"
	"ineed/internal/services"
	"ineed/internal/websockets"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/pflag"
)

type App struct {
	Database    database.DB
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
	EventBus    *events.EventBus
	Config      config.Config
	Repos       repositories.Repository
	Services    services.Service
	Controllers controllers.Controllers
}

func New(flags *pflag.FlagSet) (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.New(flags)
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events)

	repos := repositories.New(db, config)
	services := services.New(repos, config, eventBus)
	services.Sessions.SetJobFactory(jobs.SessionJobs(config, services.Backend))

	websocket, err := websockets.New(eventBus)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(services.Sessions, config)
	controllers := controllers.New(services, config)

	app := &App{
		Database:    db,
		Middleware:  middleware,
		Websocket:   websocket,
		EventBus:    eventBus,
		Config:      config,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.EventBus,
		a.Services.Backend,
		a.Services.ChatTokens,
		a.Services.Chat,
		a.Services.Guard,
		a.Services.Scheduler,
		a.Services.Sessions,
		a.Controllers.Request,
		a.Controllers.Notification,
		a.Middleware.Sessions,
		a.Repos.Toasted,
		a.Repos.Credentials,
		a.Repos.ChatTokens,
	}

	for i, check := range nilChecks {
		if isNil(check) {
			return log.Error("nil check failed", "index", i)
		}
	}

	return nil
}

// isNil also catches typed nil pointers stored in an interface.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Close disposes every session before stopping the scheduler, event bus and
// cache clients.
func (a *App) Close() (err error) {
	ctx := context.Background()

	if a.Services.Sessions != nil {
		a.Services.Sessions.CloseAll(ctx)
	}

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(ctx); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
