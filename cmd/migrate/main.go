package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/migrations"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|list>")
	}

	cfg, err := config.Load("livemap-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "up":
		db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: 1})
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()

		files, err := db.Migrate(ctx, migrations.FS)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
		for _, f := range files {
			fmt.Printf("OK  %s\n", f)
		}
		log.Println("all migrations applied")
	case "list":
		entries, err := migrations.FS.ReadDir(".")
		if err != nil {
			log.Fatalf("list: %v", err)
		}
		for _, e := range entries {
			fmt.Println(e.Name())
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}
