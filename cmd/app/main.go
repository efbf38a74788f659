package main

import (
	"flag"
	"log"
	"os"

	"FinCast/internal/di"
	"FinCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s versions=%v data=%s", cfg.Environment, cfg.Data.Versions, cfg.Data.Dir)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	defer cleanup()

	if cfg.ClickHouse.Enabled {
		log.Printf("clickhouse: schema ready db=%s table=%s", cfg.ClickHouse.Database, cfg.ClickHouse.Table)
	}
	if cfg.Kafka.Enabled {
		log.Printf("kafka: brokers=%v topic=%s", cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		cleanup()
		os.Exit(1)
	}
}
