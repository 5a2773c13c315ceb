package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rauschecker-sugrue-labs/air-download/internal/config"
	"github.com/rauschecker-sugrue-labs/air-download/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML settings file")
	url := flag.String("url", "", "AIR API base URL")
	flag.Parse()

	path := *configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".air-download.yaml")
		}
	}

	settings, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *url != "" {
		settings.BaseURL = *url
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
