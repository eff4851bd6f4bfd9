package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openl10n/tmsync/internal/fileformat"
	"github.com/openl10n/tmsync/internal/models"
	"github.com/openl10n/tmsync/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync <store-path> <file>",
	Short: "Update a translation store from an on-disk document",
	Long: `Sync parses the given document and reconciles the named store
with it. Only changes newer than the last sync point are applied;
units edited in the database since then are protected, and conflicting
file edits become pending suggestions.

A store that does not exist yet is created.`,
	Example: `  tmsync sync projects/site/de.json ./exports/de.json
  tmsync sync projects/site/de.json ./exports/de.json --overwrite`,
	Args: cobra.ExactArgs(2),
	RunE: runSync,
}

var (
	syncOverwrite bool
	syncLanguage  string
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncOverwrite, "overwrite", false,
		"Process every file unit regardless of the last sync point")
	syncCmd.Flags().StringVarP(&syncLanguage, "language", "l", "",
		"Language tag for a newly created store")
}

func runSync(cmd *cobra.Command, args []string) error {
	storePath, filePath := args[0], args[1]

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	doc, err := fileformat.Parse(data)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat document: %w", err)
	}

	store, err := repository.StoreByPath(storePath)
	if errors.Is(err, models.ErrStoreNotFound) {
		lang := syncLanguage
		if lang == "" {
			lang = doc.Language()
		}
		if lang == "" {
			lang = cfg.Sync.DefaultLanguage
		}
		store, err = models.NewStore(storePath, lang)
		if err != nil {
			return err
		}
		if err := repository.CreateStore(store); err != nil {
			return fmt.Errorf("create store: %w", err)
		}
		logger.WithField("store", storePath).Info("Created store")
	} else if err != nil {
		return err
	}

	opts := &sync.UpdaterOptions{
		SystemUser:        cfg.Sync.SystemUser,
		SuggestOnConflict: cfg.Sync.SuggestOnConflict,
	}
	updater := sync.NewStoreUpdater(store, repository, repository.Revisions(), opts, logger)

	changed, changes, err := updater.UpdateFromDisk(doc, info.ModTime(), syncOverwrite)
	if err != nil {
		if errors.Is(err, models.ErrStoreLocked) {
			return fmt.Errorf("store %s is being synced by another process", storePath)
		}
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"store":     storePath,
			"changed":   changed,
			"added":     changes.Added,
			"obsoleted": changes.Obsoleted,
			"updated":   changes.Updated,
			"suggested": changes.Suggested,
			"revision":  store.LastSyncRevision,
		})
		return nil
	}

	if !changed {
		printInfo("Store %s is already up to date", storePath)
		return nil
	}
	if changes.Suggested > 0 {
		printWarning("%d conflicting edits kept as suggestions", changes.Suggested)
	}
	printSuccess("Synced %s: %s (revision %d)",
		storePath, changes.String(), store.LastSyncRevision)
	return nil
}
