package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/ndb/internal/jsonl"
	"github.com/mesh-intelligence/ndb/pkg/ndb"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write every record to a JSON Lines file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *ndb.DB) error {
				store, err := db.Datastore()
				if err != nil {
					return err
				}
				n, err := jsonl.Export(store, args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd, map[string]any{"file": args[0], "exported": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store every record of a JSON Lines file",
		Long: `Import reads a file written by export and stores each record, replacing
records with the same kind and key. Malformed lines are skipped.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *ndb.DB) error {
				store, err := db.Datastore()
				if err != nil {
					return err
				}
				imported, skipped, err := jsonl.Import(store, args[0])
				if err != nil {
					return err
				}
				if skipped > 0 {
					a.logger.Warn("skipped malformed lines", zap.String("file", args[0]), zap.Int("skipped", skipped))
				}
				if a.flags.jsonMode {
					return writeJSON(cmd, map[string]any{"file": args[0], "imported": imported, "skipped": skipped})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %s\n", imported, args[0])
				return nil
			})
		},
	}
}
