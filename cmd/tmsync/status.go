package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openl10n/tmsync/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <store-path>",
	Short: "Show a store's sync state and unit counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := repository.StoreByPath(args[0])
	if err != nil {
		return err
	}

	units, err := repository.Units(store.ID)
	if err != nil {
		return err
	}

	counts := map[models.UnitState]int{}
	var maxRevision int64
	for _, u := range units {
		counts[u.State]++
		if u.Revision > maxRevision {
			maxRevision = u.Revision
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"store":              store.Path,
			"language":           store.Language,
			"state":              store.State.String(),
			"last_sync_revision": store.LastSyncRevision,
			"max_unit_revision":  maxRevision,
			"units": map[string]int{
				"translated":   counts[models.Translated],
				"fuzzy":        counts[models.Fuzzy],
				"untranslated": counts[models.Untranslated],
				"obsolete":     counts[models.Obsolete],
			},
		})
		return nil
	}

	printInfo("Store:     %s", store.Path)
	printInfo("Language:  %s", store.Language)
	printInfo("State:     %s", store.State)
	if store.Synced() {
		printInfo("Last sync: revision %d", store.LastSyncRevision)
	} else {
		printInfo("Last sync: never")
	}
	fmt.Println()
	printInfo("Translated:   %d", counts[models.Translated])
	printInfo("Fuzzy:        %d", counts[models.Fuzzy])
	printInfo("Untranslated: %d", counts[models.Untranslated])
	printInfo("Obsolete:     %d", counts[models.Obsolete])

	if maxRevision > store.LastSyncRevision {
		printWarning("\nStore has database edits not yet synced to disk")
	}
	return nil
}
