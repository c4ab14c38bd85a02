// migrator применяет SQL-миграции ./migrations к базе из конфигурации.
//
//	migrator --config=./config/local.yaml up
//	migrator --steps=1 down
//	migrator version
//	migrator --force=2 force
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/pribylovaa/flexibill/internal/config"
)

func main() {
	var (
		configPath     string
		migrationsPath string
		steps          int
		forceVersion   int
	)
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations directory")
	flag.IntVar(&steps, "steps", 0, "number of migrations for up/down (0 means all)")
	flag.IntVar(&forceVersion, "force", -1, "version for the force command")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	cfg := config.MustLoad(configPath)
	if cfg.DB.DatabaseURL == "" {
		log.Error("db_url_required")
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationsPath, cfg.DB.DatabaseURL)
	if err != nil {
		log.Error("migrator_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("migrator_close_failed", slog.Any("source_err", srcErr), slog.Any("db_err", dbErr))
		}
	}()

	if err := apply(m, cmd, steps, forceVersion); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no_migrations_to_apply", slog.String("cmd", cmd))
			return
		}
		log.Error("migration_failed", slog.String("cmd", cmd), slog.String("err", err.Error()))
		os.Exit(1)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Error("version_read_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("migrations_done",
		slog.String("cmd", cmd),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
}

func apply(m *migrate.Migrate, cmd string, steps, forceVersion int) error {
	switch cmd {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	case "version":
		return nil
	case "force":
		if forceVersion < 0 {
			return fmt.Errorf("force: --force=<version> is required")
		}
		return m.Force(forceVersion)
	default:
		return fmt.Errorf("unknown command %q (up, down, version, force)", cmd)
	}
}
