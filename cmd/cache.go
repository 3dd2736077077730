package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/cardwatch/internal/ansi"
	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/config"
	"github.com/arcanaland/cardwatch/internal/snapshot"
)

// cacheCmd represents the cache command group
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the cached card snapshot",
	Long:  `Commands for the cached card snapshot and the generated card art.`,
}

// cacheListCmd represents the cache ls command
var cacheListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the cards in the cached snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}

		store, err := openSnapshots(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		raw, err := store.Get(cmd.Context(), cfg.SnapshotKey)
		if errors.Is(err, snapshot.ErrNotFound) {
			fmt.Println("No cached snapshot.")
			fmt.Println("Run 'cardwatch render' to fetch the cards.")
			return nil
		}
		if err != nil {
			return err
		}

		cards, err := card.Decode(raw)
		if err != nil {
			return fmt.Errorf("cached snapshot is unreadable, run 'cardwatch cache clear': %v", err)
		}

		fmt.Printf("Snapshot %s (%s backend, %d cards)\n", cfg.SnapshotKey, cfg.SnapshotBackend, len(cards))
		for _, c := range cards {
			fmt.Printf("  %s  %s  %s\n",
				colorize.HiWhiteString("%-12s", c.ID),
				colorize.CyanString("%-8s", c.Status),
				c.Name)
		}
		return nil
	},
}

// cacheClearCmd represents the cache clear command
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the cached snapshot and generated card art",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}

		store, err := openSnapshots(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), cfg.SnapshotKey); err != nil {
			return err
		}

		if err := ansiCache().Clear(); err != nil {
			return fmt.Errorf("error clearing card art: %v", err)
		}

		fmt.Println("Cache cleared:", config.GetCacheDir())
		return nil
	},
}

// ansiCache returns the cache of generated card art
func ansiCache() *ansi.Cache {
	return ansi.NewCache(filepath.Join(config.GetCacheDir(), "ansi_cache"))
}

func init() {
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
