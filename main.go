package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/config"
	"github.com/dnsscience/telemetry/internal/daemon"
	"github.com/dnsscience/telemetry/internal/database"
	"github.com/dnsscience/telemetry/internal/repository"
	"github.com/dnsscience/telemetry/server"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	app := &cli.App{
		Name:  "telemetry",
		Usage: "domain security telemetry: scanners, stats cache and lookup API",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "also create the domain, geoip and valuation tables",
					},
				},
				Action: func(c *cli.Context) error {
					_, db := setup()
					if err := repository.MigrateDB(db, c.Bool("all")); err != nil {
						log.Fatalf("Database migration failed: %v", err)
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the API server and the stats populate cron",
				Action: func(c *cli.Context) error {
					cfg, db := setup()
					srv, err := server.NewServer(cfg, db)
					if err != nil {
						log.Fatalf("Server setup failed: %v", err)
					}
					if err := srv.Run(); err != nil {
						log.Fatalf("Server startup failed: %v", err)
					}
					log.Println("Shutdown complete")
					return nil
				},
			},
			daemonCommand("emaild", "Scan email security records", daemon.JobEmailSecurity),
			daemonCommand("reputationd", "Scan IP reputation of domain addresses", daemon.JobReputation),
			daemonCommand("certd", "Scan TLS certificates", daemon.JobCertificate),
			{
				Name:  "populate",
				Usage: "Refresh the stats cache once",
				Action: func(c *cli.Context) error {
					cfg, db := setup()
					return server.PopulateOnce(cfg, db)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func daemonCommand(name, usage, job string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			cfg, db := setup()
			return server.RunDaemon(cfg, db, job)
		},
	}
}

// setup loads config and opens the store. Both are fatal on failure.
func setup() (*config.Config, *gorm.DB) {
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if cfg == nil {
		log.Fatalf("config is empty")
	}

	db, err := database.InitDatabase(cfg.PostgresConfig)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}
	return cfg, db
}
