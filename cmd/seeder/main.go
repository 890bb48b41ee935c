// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/wa-dispatch/internal/config"
	"github.com/unclebandit/wa-dispatch/internal/db"
	"github.com/unclebandit/wa-dispatch/internal/observability"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	observability.InitLogger(cfg.ServiceName+"-seeder", cfg.LogLevel)
	log := observability.Log
	defer log.Sync()

	conn, err := db.Open(context.Background(), cfg.DB, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatal("failed to list migrations", zap.Error(err))
	}
	if len(os.Args) > 1 && os.Args[1] == "--seed" {
		seeds, _ := filepath.Glob("seed/*.sql")
		files = append(files, seeds...)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal("failed to read sql file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal("failed to execute sql file", zap.String("file", file), zap.Error(err))
		}
		log.Info("applied", zap.String("file", file))
	}

	log.Info("database setup completed successfully", zap.Int("files", len(files)))
}
