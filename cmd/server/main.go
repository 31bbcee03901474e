// Package main is the entry point for the pitch2midi API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/james-see/pitch2midi/pkg/api"
	"github.com/james-see/pitch2midi/pkg/config"
	"github.com/james-see/pitch2midi/pkg/logging"
)

func main() {
	cfgFile := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "Server port (overrides config)")
	flag.Parse()

	v := config.NewViper()
	if *port > 0 {
		v.Set("server.port", *port)
	}
	cfg, err := config.Load(v, *cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Starting pitch2midi API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.StartServer(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
