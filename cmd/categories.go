package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories and their parameters",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCategories(cmd *cobra.Command, args []string) error {
	_, catalog, err := loadCatalog()
	if err != nil {
		return err
	}
	categories := catalog.Categories()
	if mustGetBool(cmd, "json") {
		return outputJSON(categories)
	}

	for _, cat := range categories {
		fmt.Printf("%s (%s) - %s, %s model\n", cat.ID, cat.Feature, cat.Name, cat.Model)
		for _, def := range cat.Parameters {
			fmt.Printf("  %-26s %-20s [%g, %g] step %g default %g\n", def.ID, def.Name, def.Min, def.Max, def.Step, def.Default)
		}
	}
	return nil
}
