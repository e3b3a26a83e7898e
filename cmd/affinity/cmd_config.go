package main

import (
	"fmt"

	"github.com/affinityhq/affinity/internal/config"
)

// cmdInit bootstraps ~/.affinity with a default configuration.
func cmdInit() error {
	dir, err := config.EnsureDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("Initialized %s\n", dir)
	fmt.Printf("API base URL: %s\n", cfg.API.BaseURL)
	fmt.Println("Edit config.yaml or set AFFINITY_API_URL to point at your platform.")
	return nil
}

// cmdConfig shows the effective configuration.
func cmdConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Configuration")
	fmt.Println("=============")
	fmt.Printf("API base URL:     %s\n", cfg.API.BaseURL)
	fmt.Printf("Request timeout:  %ds\n", cfg.API.TimeoutSeconds)
	fmt.Printf("Rate limit:       %d req/s\n", cfg.API.RatePerSecond)
	fmt.Printf("Log level:        %s\n", cfg.Log.Level)
	return nil
}
