package main

import (
	"flag"

	"github.com/rs/zerolog/log"

	"storehub/internal/pkg/logger"
	"storehub/internal/platform/config"
	"storehub/internal/platform/database"
)

func main() {
	target := flag.String("target", "global", "Migration target: global or tenant")
	direction := flag.String("direction", "up", "Migration direction: up or down")
	orgID := flag.String("org", "", "Organization ID (required for tenant migrations)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Logging)

	dir := database.Direction(*direction)
	if dir != database.Up && dir != database.Down {
		log.Fatal().Str("direction", *direction).Msg("invalid direction: must be 'up' or 'down'")
	}

	switch *target {
	case "global":
		db, err := database.NewGlobalDB(cfg.Database.Global)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to global DB")
		}
		defer db.Close()
		if err := database.MigrateGlobal(db, dir); err != nil {
			log.Fatal().Err(err).Msg("global migration failed")
		}
	case "tenant":
		if *orgID == "" {
			log.Fatal().Msg("--org flag required for tenant migrations")
		}
		// Get already applies the up migrations when it opens the file.
		pool := database.NewTenantDBPool(cfg.Database.Tenant)
		defer pool.CloseAll()
		db, err := pool.Get(*orgID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open tenant DB")
		}
		if dir == database.Down {
			if err := database.MigrateTenant(db, dir); err != nil {
				log.Fatal().Err(err).Msg("tenant migration failed")
			}
		}
	default:
		log.Fatal().Str("target", *target).Msg("invalid target: must be 'global' or 'tenant'")
	}

	log.Info().Str("target", *target).Str("direction", *direction).Msg("migration completed successfully")
}
