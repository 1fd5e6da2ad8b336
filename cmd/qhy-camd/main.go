package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/camera"
	"github.com/rockit-astro/qhy-camd/internal/config"
	"github.com/rockit-astro/qhy-camd/internal/handlers"
	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/qhy"
	"github.com/rockit-astro/qhy-camd/internal/repository"
	"github.com/rockit-astro/qhy-camd/internal/repository/db"
	"github.com/rockit-astro/qhy-camd/internal/server"
	"github.com/rockit-astro/qhy-camd/internal/service"
)

func main() {
	// load config.yml
	cfg, err := config.Load("configs")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)

	// open DB
	database, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(database)
	recorder := service.NewRecorder(repos.EventRepo, log)
	ctrl := camera.NewController(cfg, log, newDriver(cfg), recorder)
	frames := service.NewFrameNotifier(log)
	services := service.NewService(ctrl, repos.EventRepo, frames)
	apiHandler := handlers.NewHandler(services, log)

	// context for the camera control loop
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the control loop; it owns the camera for its whole lifetime
	ctrlDone := make(chan error, 1)
	go func() {
		ctrlDone <- ctrl.Run(ctx)
	}()

	// drain completed frames for the downstream pipeline and ws subscribers
	go frames.Run(ctrl.Frames())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, ctrl, ctrlDone, log)
}

// newDriver selects the camera driver. The vendor SDK binding is linked on
// observatory machines; everywhere else the simulator stands in.
func newDriver(cfg *config.Config) qhy.Driver {
	sim := qhy.DefaultSimConfig()
	sim.DeviceID = cfg.CameraDeviceID
	return qhy.NewSimDriver(sim)
}

// openDB initializes the SQLite event database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DBPath
	if path == "" {
		log.Infow("db_path not set in config; using default file", "default", "qhy-camd.db")
		path = "qhy-camd.db"
	}
	return db.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, ctrl *camera.Controller, ctrlDone <-chan error, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// park the camera first so the cooler ramps down under control
	if status := ctrl.Shutdown(); status != models.Succeeded {
		log.Errorw("camera shutdown", "status", status.String())
	}
	cancel()
	if err := <-ctrlDone; err != nil {
		log.Errorw("control loop exited with error", "err", err)
	}

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
