package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"fds-analytics/internal/analytics/intents"
)

type catalogEntry struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the intent catalog with the argument schema of each intent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := intents.NewCatalog()
		if err != nil {
			return fmt.Errorf("building catalog: %w", err)
		}

		entries := make([]catalogEntry, 0, len(catalog.Names()))
		for _, def := range catalog.Definitions() {
			entries = append(entries, catalogEntry{
				Name:        def.Name,
				Description: def.Description,
				Schema:      def.JSONSchema(),
			})
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
