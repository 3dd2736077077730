package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// renderCmd represents the render command
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Run one poll cycle and write the rendered cards",
	Long: `Render loads the card templates, renders the cached snapshot, runs one poll
cycle and writes the card container HTML. If the card endpoint cannot be
reached the cached cards are written instead.`,
	Args: cobra.NoArgs,
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

		client, err := newCardClient(cfg)
		if err != nil {
			return err
		}

		controller, err := newController(cfg, client, store)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := controller.Init(ctx); err != nil {
			return fmt.Errorf("error loading templates: %v", err)
		}

		// A failed fetch keeps the cached view
		if err := controller.Refresh(ctx); err != nil {
			logger.Warn("Rendering cached cards", zap.Error(err))
		}

		var out io.Writer = cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			file, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("error creating output file: %v", err)
			}
			defer file.Close()
			out = file
		}

		if err := controller.Renderer().WriteHTML(out); err != nil {
			return fmt.Errorf("error writing cards: %v", err)
		}
		_, err = fmt.Fprintln(out)
		return err
	},
}

func init() {
	renderCmd.Flags().StringP("out", "o", "", "write the HTML to a file instead of stdout")
}
