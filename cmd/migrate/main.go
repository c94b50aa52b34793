package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"bloomcart-be/internal/config"
	"bloomcart-be/internal/db"
	"bloomcart-be/internal/logger"
	"bloomcart-be/internal/migrate"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type applyFunc func(dsn string, mode migrate.Mode) error

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	mode := flag.String("mode", "up", "migration mode: up or down")
	list := flag.Bool("list", false, "list embedded migrations and exit")
	flag.Parse()

	if *list {
		if err := listMigrations(os.Stdout); err != nil {
			logger.L().Fatal("failed to list migrations", zap.Error(err))
		}
		return
	}

	dsn := resolveDSN(os.Getenv)
	if err := run(*mode, dsn, migrate.Run); err != nil {
		logger.L().Fatal("migration failed", zap.String("mode", *mode), zap.Error(err))
	}
	logger.L().Info("migrations applied", zap.String("mode", *mode))
}

// resolveDSN prefers DB_URL and falls back to the DB_* settings the server uses.
func resolveDSN(getenv func(string) string) string {
	if url := getenv("DB_URL"); url != "" {
		return url
	}
	return db.DSN(config.LoadConfig())
}

func run(mode, dsn string, apply applyFunc) error {
	m, err := migrate.ParseMode(mode)
	if err != nil {
		return err
	}
	if dsn == "" {
		return fmt.Errorf("no database configured")
	}
	return apply(dsn, m)
}

func listMigrations(w io.Writer) error {
	files, err := migrate.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Fprintln(w, f)
	}
	return nil
}
