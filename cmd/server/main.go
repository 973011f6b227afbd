// Package main is the entry point for the codebench server.
//
// main stays minimal: read configuration from the environment, build the
// executor backend, and hand everything to internal/server. All real logic
// lives in the internal packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/tahmid/codebench/internal/executor"
	"github.com/tahmid/codebench/internal/executor/docker"
	"github.com/tahmid/codebench/internal/executor/subprocess"
	"github.com/tahmid/codebench/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/codebench.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(dbPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// JWT_SECRET should be a long random string, e.g.:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// Without one we generate an ephemeral secret so local development
	// works, at the cost of sessions not surviving a restart.
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = xid.New().String() + xid.New().String()
		logger.Warn("JWT_SECRET not set — using an ephemeral secret, sessions will not survive restarts")
	}

	exec, cleanup, err := buildExecutor(logger)
	if err != nil {
		logger.Error("failed to create executor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	cfg := server.Config{
		Port:      port,
		DBPath:    dbPath,
		JWTSecret: jwtSecret,
	}

	srv, err := server.New(cfg, logger, exec)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// buildExecutor picks the execution backend from EXEC_BACKEND.
//
//	subprocess (default) — host subprocesses in throwaway workspaces
//	docker               — a pre-warmed pool of locked-down containers
//
// The subprocess backend needs no daemon and is the right default for
// development; docker gives real isolation for anything internet-facing.
func buildExecutor(logger *slog.Logger) (executor.Executor, func(), error) {
	switch backend := os.Getenv("EXEC_BACKEND"); backend {
	case "", "subprocess":
		cfg := subprocess.DefaultConfig()
		if root := os.Getenv("EXEC_ROOT"); root != "" {
			cfg.Root = root
		}
		if timeout := os.Getenv("EXEC_TIMEOUT"); timeout != "" {
			d, err := time.ParseDuration(timeout)
			if err != nil {
				logger.Error("invalid EXEC_TIMEOUT value", slog.String("value", timeout))
				os.Exit(1)
			}
			cfg.Timeout = d
		}
		runner, err := subprocess.New(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using subprocess executor", slog.String("root", cfg.Root))
		return runner, nil, nil

	case "docker":
		exec, err := docker.New(docker.DefaultConfig(), logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using docker executor")
		return exec, func() { exec.Close() }, nil

	default:
		logger.Error("unknown EXEC_BACKEND value", slog.String("value", backend))
		os.Exit(1)
		return nil, nil, nil
	}
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
