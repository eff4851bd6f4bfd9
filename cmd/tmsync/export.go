package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openl10n/tmsync/internal/fileformat"
)

var exportCmd = &cobra.Command{
	Use:   "export <store-path> <file>",
	Short: "Write a store's live units back to a document",
	Long: `Export serializes the store's non-obsolete units, in index order,
to a JSON document at the given path.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	storePath, filePath := args[0], args[1]

	store, err := repository.StoreByPath(storePath)
	if err != nil {
		return err
	}
	units, err := repository.Units(store.ID)
	if err != nil {
		return err
	}

	doc := fileformat.FromDBUnits(store.Language, units)
	data, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("serialize store: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"store": storePath,
			"file":  filePath,
			"units": len(doc.Units()),
		})
		return nil
	}
	printSuccess("Exported %d units to %s", len(doc.Units()), filePath)
	return nil
}
