package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/arcanaland/cardwatch/internal/ansi"
	"github.com/arcanaland/cardwatch/internal/card"
	"github.com/arcanaland/cardwatch/internal/cardapi"
	"github.com/arcanaland/cardwatch/internal/config"
	"github.com/arcanaland/cardwatch/internal/render"
	"github.com/arcanaland/cardwatch/internal/snapshot"
)

var showCmd = &cobra.Command{
	Use:   "show [card_id]",
	Short: "Display information about a specific card with ANSI art",
	Long: `Show displays the details of a card with its image as ANSI terminal art.
The card is looked up in the cached snapshot first and fetched from the card
endpoint when it is not cached. Use --fetch to always fetch.

Examples:
  cardwatch show 7f3a1c
  cardwatch show --fetch 7f3a1c
  cardwatch show --no-art 7f3a1c`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cardID := args[0]
		fetch, _ := cmd.Flags().GetBool("fetch")
		noArt, _ := cmd.Flags().GetBool("no-art")

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}

		store, err := openSnapshots(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		client, err := newCardClient(cfg)
		if err != nil {
			return err
		}

		// Get the card
		c, err := lookupCard(cmd.Context(), cfg, store, client, cardID, fetch)
		if err != nil {
			return err
		}

		// Get the ANSI art
		var art string
		if !noArt {
			art, err = cardArt(cmd.Context(), cfg, client, c)
			if err != nil {
				logger.Debug("No card art", zap.Error(err))
				fmt.Println(colorize.YellowString("No card art: %v", err))
			}
		}

		displayCard(c, art)
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("fetch", false, "fetch the card list instead of reading the cached snapshot")
	showCmd.Flags().Bool("no-art", false, "do not render the card image")
}

// lookupCard finds the card in the cached snapshot, falling back to the card
// endpoint. Fetched lists are written back to the snapshot.
func lookupCard(ctx context.Context, cfg *config.Config, store snapshot.Store, client *cardapi.Client, cardID string, fetch bool) (*card.Card, error) {
	if !fetch {
		raw, err := store.Get(ctx, cfg.SnapshotKey)
		switch {
		case err == nil:
			if cards, err := card.Decode(raw); err == nil {
				if c, ok := card.Find(cards, cardID); ok {
					return c, nil
				}
			}
		case !errors.Is(err, snapshot.ErrNotFound):
			logger.Warn("Failed to read cached snapshot", zap.Error(err))
		}
	}

	res, err := client.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching cards: %v", err)
	}
	if err := store.Put(ctx, cfg.SnapshotKey, res.Raw); err != nil {
		logger.Warn("Failed to update cached snapshot", zap.Error(err))
	}

	c, ok := card.Find(res.Cards, cardID)
	if !ok {
		return nil, fmt.Errorf("card not found: %s", cardID)
	}
	return c, nil
}

// cardArt returns the card image as ANSI art, generating and caching it on
// first use
func cardArt(ctx context.Context, cfg *config.Config, client *cardapi.Client, c *card.Card) (string, error) {
	src, ok := render.SafeImageURL(c.ImageURL.String())
	if !ok || src == "" {
		return "", fmt.Errorf("card %s has no usable image URL", c.ID)
	}

	// Resolve relative image URLs against the card endpoint
	base, err := cfg.Base()
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	imageURL := base.ResolveReference(ref).String()

	return ansiCache().Load(imageURL, func(u string) ([]byte, error) {
		return client.Download(ctx, u)
	})
}

// displayCard displays the card information with ANSI art
func displayCard(c *card.Card, art string) {
	// Split the ANSI art into lines
	var ansiLines []string
	if art != "" {
		ansiLines = strings.Split(strings.TrimSuffix(art, "\n"), "\n")
	}
	maxAnsiWidth := ansi.Width(art)

	// Get terminal width
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}

	label := func(name string) string {
		return colorize.CyanString("%-6s", name+":")
	}

	var infoLines []string
	infoLines = append(infoLines, label("Card")+colorize.HiWhiteString("%s", c.Name))
	infoLines = append(infoLines, label("ID")+colorize.HiWhiteString("%s", c.ID))
	infoLines = append(infoLines, label("Status")+colorize.HiWhiteString("%s", c.Status))
	infoLines = append(infoLines, label("Chain")+colorize.HiWhiteString("%s", c.Chain))
	infoLines = append(infoLines, label("Theme")+colorize.HiWhiteString("%s", c.Theme))
	infoLines = append(infoLines, label("Type")+colorize.HiWhiteString("%s", c.Type))
	infoLines = append(infoLines, label("USD")+colorize.HiWhiteString("%s", c.USDAmount))
	infoLines = append(infoLines, label("Pack")+colorize.HiWhiteString("%s", c.PackID))
	infoLines = append(infoLines, label("Date")+colorize.HiWhiteString("%s", c.Date))

	// Art on the left, info on the right
	spacing := 4
	infoStartCol := 0
	if maxAnsiWidth > 0 {
		infoStartCol = maxAnsiWidth + spacing
	}

	infoWidth := width - infoStartCol - 2
	if infoWidth < 20 {
		infoWidth = 20
	}

	// Coins wrap to the available width
	if coins := c.Coins.Tokens(); len(coins) > 0 {
		infoLines = append(infoLines, "")
		infoLines = append(infoLines, colorize.CyanString("Coins:"))
		infoLines = append(infoLines, ansi.WrapText(strings.Join(coins, " · "), infoWidth)...)
	}

	fmt.Println()

	maxLines := max(len(ansiLines), len(infoLines))
	for i := 0; i < maxLines; i++ {
		fmt.Print("  ")
		if i < len(ansiLines) {
			fmt.Print(ansiLines[i])
			visibleWidth := len([]rune(ansi.Strip(ansiLines[i])))
			fmt.Print(strings.Repeat(" ", infoStartCol-visibleWidth))
		} else {
			fmt.Print(strings.Repeat(" ", infoStartCol))
		}

		if i < len(infoLines) {
			fmt.Print(infoLines[i])
		}

		fmt.Println()
	}

	fmt.Println()
}
