// Command reconcile retries the appointment step of approvals that were
// committed but never materialized an appointment.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"bookingflow/internal/app"
	"bookingflow/internal/config"
	"bookingflow/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("bookingflow-reconcile", "info").Error("config load failed", "err", err)
		os.Exit(1)
	}
	logger := logging.New("bookingflow-reconcile", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = a.Close() }()

	report, err := a.Bookings.ResumePending(ctx)
	if err != nil {
		logger.Error("reconcile failed", "err", err, "scanned", report.Scanned)
		os.Exit(1)
	}

	logger.Info("reconcile completed",
		"scanned", report.Scanned,
		"resumed", report.Resumed,
		"failed", report.Failed,
	)
	if report.Failed > 0 {
		os.Exit(2)
	}
}
