package main

import (
	"flag"
	"log"
	"os"

	"MarketRelay/internal/di"
	"MarketRelay/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	backend := "file"
	if cfg.RedisConfigured() {
		backend = "redis"
	}
	log.Printf("env=%s port=%d backend=%s kafka=%t", cfg.Environment, cfg.Server.Port, backend, cfg.Kafka.Enabled)

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
