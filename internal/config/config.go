package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// PredictPath is the route of the calibration endpoint, e.g. "/calibration-engine-api/v1/".
	PredictPath string

	// Model artifact paths per pollutant. An empty path disables that model.
	ModelPathPM25 string
	ModelPathPM10 string

	// Credentials is the raw "user:hash,user2:hash" list from CREDENTIALS.
	Credentials     string
	CredentialsFile string
	AuthRealm       string

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	ShutdownTimeout    time.Duration
}

// LoadDotEnv seeds the process environment from a .env file when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	predictPath := strings.TrimSpace(os.Getenv("PREDICT_PATH"))
	if predictPath == "" {
		predictPath = "/calibration-engine-api/v1/"
	}
	if !strings.HasPrefix(predictPath, "/") || !strings.HasSuffix(predictPath, "/") || predictPath == "/" {
		return Config{}, fmt.Errorf("invalid PREDICT_PATH %q (must start and end with '/' and not be the root)", predictPath)
	}
	if strings.ContainsAny(predictPath, "{} ") {
		return Config{}, fmt.Errorf("invalid PREDICT_PATH %q (wildcards and spaces are not allowed)", predictPath)
	}

	// An explicitly empty MODEL_PATH_PM2_5 disables the slot; unset means default.
	modelPathPM25, ok := os.LookupEnv("MODEL_PATH_PM2_5")
	if !ok {
		modelPathPM25 = "assets/model_pm2_5.json.gz"
	}
	modelPathPM25 = strings.TrimSpace(modelPathPM25)
	modelPathPM10 := strings.TrimSpace(os.Getenv("MODEL_PATH_PM10"))
	if modelPathPM25 == "" && modelPathPM10 == "" {
		return Config{}, fmt.Errorf("no model configured (set MODEL_PATH_PM2_5 and/or MODEL_PATH_PM10)")
	}

	credentials := strings.TrimSpace(os.Getenv("CREDENTIALS"))
	credentialsFile := strings.TrimSpace(os.Getenv("CREDENTIALS_FILE"))
	if credentials == "" && credentialsFile == "" {
		return Config{}, fmt.Errorf("no credentials configured (set CREDENTIALS or CREDENTIALS_FILE)")
	}

	authRealm := strings.TrimSpace(os.Getenv("AUTH_REALM"))
	if authRealm == "" {
		authRealm = "calibration-engine"
	}
	if strings.Contains(authRealm, `"`) {
		return Config{}, fmt.Errorf("invalid AUTH_REALM %q (must not contain quotes)", authRealm)
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		// Credentialed CORS responses may not carry a literal "*" origin.
		if o == "*" {
			return Config{}, errors.New(`invalid CORS_ALLOWED_ORIGINS: "*" cannot be combined with credentials`)
		}
		origins = append(origins, o)
	}

	maxBodyStr := strings.TrimSpace(os.Getenv("MAX_BODY_BYTES"))
	if maxBodyStr == "" {
		maxBodyStr = "1048576"
	}
	maxBody, err := strconv.ParseInt(maxBodyStr, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MAX_BODY_BYTES %q: %w", maxBodyStr, err)
	}
	if maxBody <= 0 {
		return Config{}, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", maxBody)
	}

	shutdownStr := strings.TrimSpace(os.Getenv("SHUTDOWN_TIMEOUT"))
	if shutdownStr == "" {
		shutdownStr = "10s"
	}
	shutdownTimeout, err := time.ParseDuration(shutdownStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", shutdownStr, err)
	}
	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", shutdownTimeout)
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		PredictPath:        predictPath,
		ModelPathPM25:      modelPathPM25,
		ModelPathPM10:      modelPathPM10,
		Credentials:        credentials,
		CredentialsFile:    credentialsFile,
		AuthRealm:          authRealm,
		CORSAllowedOrigins: origins,
		MaxBodyBytes:       maxBody,
		ShutdownTimeout:    shutdownTimeout,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// ParseLogLevel is exported for the trainer CLI, which takes the level as a flag.
func ParseLogLevel(s string) (slog.Level, error) {
	return parseLogLevel(s)
}
