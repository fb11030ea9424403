/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (.env / environment)
  2. Initialize SQLite store (auto-migrates, seeds leave catalog)
  3. Create API handler and router
  4. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for active
  requests, close the database, exit.

CONFIGURATION:
  See config/config.go for variables. Example:

    PORT=3000 DB_PATH=./data/hr.db TZ_OFFSET_HOURS=7 ./server
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/peoplekit/hr-engine/api"
	"github.com/peoplekit/hr-engine/config"
	"github.com/peoplekit/hr-engine/identity"
	"github.com/peoplekit/hr-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	if err := seedAdmin(store, cfg, log); err != nil {
		log.WithError(err).Fatal("failed to seed initial admin")
	}

	handler := api.NewHandler(store, cfg.Zone(), log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port": cfg.Port,
			"db":   cfg.DBPath,
			"zone": cfg.Zone().String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

// seedAdmin creates a bootstrap hr_admin when the user directory is empty, so
// a fresh deployment can create real users through the API.
func seedAdmin(store *sqlite.Store, cfg *config.Config, log *logrus.Logger) error {
	ctx := context.Background()

	users, err := store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}

	admin := identity.User{
		ID:             "admin",
		Name:           "Administrator",
		Role:           identity.RoleHRAdmin,
		ShiftStartHour: cfg.DefaultShiftStart,
		ShiftEndHour:   cfg.DefaultShiftEnd,
	}
	if err := store.SaveUser(ctx, admin); err != nil {
		return err
	}
	log.WithField("user_id", admin.ID).Info("seeded bootstrap admin")
	return nil
}
