package main

import (
	"flag"
	"log"
	"os"

	"MacroPulse/internal/di"
	"MacroPulse/pkg/config"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", configPath, err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}

	// Blocks until SIGINT or SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("run: %v", err)
		os.Exit(1)
	}
}
