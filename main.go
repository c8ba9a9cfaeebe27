package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	configPath := flag.String("config", "", "path to the TOML config file (default $HRF_CONFIG_PATH or ~/.hoyolab_feeds.toml)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	path := *configPath
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := CreateDefaultConfig(path); err != nil {
			log.WithError(err).Fatal("Could not create default config file")
		}
		fmt.Printf("Default config file created at %q, edit it and run again.\n", path)
		return
	}

	configs, err := LoadFeedConfigs(path)
	if err != nil {
		log.WithError(err).Fatal("Could not load config")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	collection, err := GameFeedCollectionFromConfigs(configs, client)
	if err != nil {
		log.WithError(err).Fatal("Could not create game feeds")
	}

	if err := collection.CreateFeeds(context.Background()); err != nil {
		log.WithError(err).Fatal("Feed update failed")
	}
}
