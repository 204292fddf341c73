// Copyright 2017 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/flappyjet/telemetry-server/internal/app"
	"github.com/flappyjet/telemetry-server/internal/config"
	"github.com/flappyjet/telemetry-server/internal/logging"
	"github.com/flappyjet/telemetry-server/internal/store/migrations"
)

var (
	version  string
	commitID string
)

func main() {
	semver := fmt.Sprintf("%s+%s", version, commitID)

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate()
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(semver)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := logging.DefaultOptions()
	if cfg.Env == config.EnvProduction {
		opts.Level = "info"
	} else {
		opts.Level = "debug"
	}
	logger := logging.New(opts)
	defer logger.Sync()

	logger.Info("starting telemetry server", zap.String("version", semver), zap.String("env", string(cfg.Env)))

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	application.Start()

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	application.Stop(shutdownCtx)
	logger.Info("shutdown complete")
}

func runMigrate() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(logging.DefaultOptions())
	defer logger.Sync()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("migrate: open database", zap.Error(err))
	}
	defer db.Close()

	if _, err := migrations.Run(logger, db); err != nil {
		logger.Fatal("migrate: apply migrations", zap.Error(err))
	}
}
