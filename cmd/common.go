package cmd

import (
	"fmt"
	"net/http"

	"github.com/arcanaland/cardwatch/internal/cardapi"
	"github.com/arcanaland/cardwatch/internal/config"
	"github.com/arcanaland/cardwatch/internal/poller"
	"github.com/arcanaland/cardwatch/internal/render"
	"github.com/arcanaland/cardwatch/internal/snapshot"
)

// loadConfig loads the config from --config or the default path
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfigFrom(configPath)
	}
	return config.LoadConfig()
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetConfigFilePath()
}

// openSnapshots opens the configured snapshot backend in the cache directory
func openSnapshots(cfg *config.Config) (snapshot.Store, error) {
	store, err := snapshot.Open(cfg.SnapshotBackend, config.GetCacheDir())
	if err != nil {
		return nil, fmt.Errorf("error opening snapshot store: %v", err)
	}
	return store, nil
}

// newCardClient creates the card endpoint client
func newCardClient(cfg *config.Config) (*cardapi.Client, error) {
	cardsURL, err := cfg.CardsURL()
	if err != nil {
		return nil, err
	}
	return cardapi.NewClient(cardsURL, http.DefaultClient, cfg.RequestTimeout.Duration), nil
}

// newController wires the poll loop from the config
func newController(cfg *config.Config, client *cardapi.Client, store snapshot.Store) (*poller.Controller, error) {
	refs, err := cfg.TemplateRefs()
	if err != nil {
		return nil, err
	}
	base, err := cfg.Base()
	if err != nil {
		return nil, err
	}

	return poller.New(poller.Options{
		Templates:     refs,
		ContainerID:   cfg.ContainerID,
		Fetcher:       client,
		Snapshots:     store,
		SnapshotKey:   cfg.SnapshotKey,
		Interval:      cfg.PollInterval.Duration,
		HTTPClient:    http.DefaultClient,
		RenderOptions: []render.Option{render.WithImageBase(base)},
		Logger:        logger,
	})
}
