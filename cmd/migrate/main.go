package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/migrate"
)

func main() {
	var (
		down   int
		status bool
	)
	flag.IntVar(&down, "down", 0, "Roll back this many migrations instead of migrating up")
	flag.BoolVar(&status, "status", false, "Print the current schema version and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	base, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = base.Sync() }()
	logger := base.Named("migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{Logger: logger})
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	switch {
	case status:
	case down > 0:
		if err := migrate.Rollback(ctx, pool, down); err != nil {
			logger.Fatal("roll back migrations", zap.Int("steps", down), zap.Error(err))
		}
	default:
		if err := migrate.Apply(ctx, pool); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	}

	st, err := migrate.CurrentStatus(ctx, pool)
	if err != nil {
		logger.Fatal("read schema version", zap.Error(err))
	}
	logger.Info("schema version", zap.Uint("version", st.Version), zap.Bool("dirty", st.Dirty), zap.Bool("empty", st.Empty))
}
