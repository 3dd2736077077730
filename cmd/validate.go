package cmd

import (
	"fmt"
	"net/http"

	colorize "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcanaland/cardwatch/internal/validator"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configured card templates",
	Long: `Validate fetches every configured card template fragment and checks it holds
a <template> element and the slots the renderer fills. A template missing the
coin table slot for STATUS_1 is an error; other missing slots are warnings.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %v", err)
		}

		refs, err := cfg.TemplateRefs()
		if err != nil {
			return err
		}

		// Create validator and run validation
		v := validator.NewValidator(refs, http.DefaultClient)
		results, err := v.Validate(cmd.Context())
		if err != nil {
			return fmt.Errorf("validation error: %v", err)
		}

		// Display validation results
		fmt.Println("Validation Results:")
		fmt.Println("-------------------")

		if len(results.Errors) == 0 {
			fmt.Println(colorize.GreenString("✅ Templates are valid."))
		} else {
			fmt.Println(colorize.RedString("❌ Templates have %d validation errors:", len(results.Errors)))
			for i, err := range results.Errors {
				fmt.Printf("%d. %s\n", i+1, err)
			}
		}

		if len(results.Warnings) > 0 {
			fmt.Println(colorize.YellowString("\nWarnings:"))
			for i, warn := range results.Warnings {
				fmt.Printf("%d. %s\n", i+1, warn)
			}
		}

		if len(results.Errors) > 0 {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}
