package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"calibration-engine/internal/auth"
	"calibration-engine/internal/config"
	httpapi "calibration-engine/internal/httpapi"
	"calibration-engine/internal/metrics"
	"calibration-engine/internal/model"
	calibration "calibration-engine/internal/modules/calibration"
	"calibration-engine/internal/modules/calibration/controller"
)

// Run loads credentials and models, then serves until ctx is canceled.
// Any startup failure is returned before the listener opens.
func Run(ctx context.Context, cfg config.Config) error {
	return run(ctx, cfg, nil)
}

// run optionally accepts a pre-bound listener so tests can use a random port.
func run(ctx context.Context, cfg config.Config, ln net.Listener) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"predictPath", cfg.PredictPath,
		"modelPathPM25", cfg.ModelPathPM25,
		"modelPathPM10", cfg.ModelPathPM10,
		"credentialsFile", cfg.CredentialsFile,
		"authRealm", cfg.AuthRealm,
		"corsAllowedOrigins", cfg.CORSAllowedOrigins,
		"maxBodyBytes", cfg.MaxBodyBytes,
		"shutdownTimeout", cfg.ShutdownTimeout,
	)

	credentials, err := auth.LoadCredentials(cfg.Credentials, cfg.CredentialsFile)
	if err != nil {
		return err
	}
	slog.Info("credentials loaded", "users", credentials.Len())

	models, err := model.LoadSet(map[model.Pollutant]string{
		model.PM25: cfg.ModelPathPM25,
		model.PM10: cfg.ModelPathPM10,
	}, slog.Default())
	if err != nil {
		return err
	}

	m := metrics.New()
	mux := httpapi.NewMux(models, m)
	calibration.RegisterFeature(mux, models, m, controller.Options{
		Credentials:  credentials,
		Realm:        cfg.AuthRealm,
		PredictPath:  cfg.PredictPath,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	srv := httpapi.NewServer(cfg, mux, m)

	errCh := make(chan error, 1)
	go func() {
		if ln != nil {
			slog.Info("http listening", "addr", ln.Addr().String())
			errCh <- srv.Serve(ln)
			return
		}
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
