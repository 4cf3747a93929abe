package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/ndb/pkg/datastore"
	"github.com/mesh-intelligence/ndb/pkg/ndb"
)

// withDB opens the configured datastore, runs fn and closes it again. The
// store is closed even when it cannot become the active DB.
func (a *app) withDB(fn func(db *ndb.DB) error) (err error) {
	store, err := datastore.Open(a.cfg)
	if err != nil {
		return err
	}
	db, err := ndb.Open(store, ndb.WithLogger(a.logger), ndb.WithName(a.cfg.Backend))
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			a.logger.Warn("closing unused datastore", zap.Error(cerr))
		}
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(db)
}

// writeJSON prints v as indented JSON.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
