package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/ndb/internal/jsonl"
	"github.com/mesh-intelligence/ndb/pkg/ndb"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

func newKindsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the kinds in the datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *ndb.DB) error {
				kinds, err := db.Kinds()
				if err != nil {
					return err
				}
				return printList(cmd, a.flags.jsonMode, kinds)
			})
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <kind>",
		Short: "List the record keys of a kind",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *ndb.DB) error {
				store, err := db.Datastore()
				if err != nil {
					return err
				}
				keys := []string{}
				for key, err := range store.ScanKeys(args[0]) {
					if err != nil {
						return err
					}
					keys = append(keys, key)
				}
				slices.Sort(keys)
				return printList(cmd, a.flags.jsonMode, keys)
			})
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <key>",
		Short: "Print a stored record",
		Long: `Get prints the payload stored under kind and key.

Example:
  ndb get User 0192f0c4e5a87b3c9d1e2f3a4b5c6d7e
  ndb get --json Message m1`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, key := args[0], args[1]
			return a.withDB(func(db *ndb.DB) error {
				payload, err := getPayload(db, kind, key)
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd, jsonl.Record{Kind: kind, Key: key, Payload: jsonPayload(payload)})
				}
				var out bytes.Buffer
				if err := json.Indent(&out, []byte(payload), "", "  "); err != nil {
					// Not JSON; print as stored.
					fmt.Fprintln(cmd.OutOrStdout(), payload)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), out.String())
				return nil
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <key>",
		Short: "Delete a stored record",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, key := args[0], args[1]
			return a.withDB(func(db *ndb.DB) error {
				if _, err := getPayload(db, kind, key); err != nil {
					return err
				}
				store, err := db.Datastore()
				if err != nil {
					return err
				}
				if err := store.Delete(kind, key); err != nil {
					return err
				}
				if a.flags.jsonMode {
					return writeJSON(cmd, map[string]string{"kind": kind, "key": key, "status": "deleted"})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", kind, key)
				return nil
			})
		},
	}
}

// jsonPayload returns payload as JSON, quoting it as a string when it is
// not JSON already.
func jsonPayload(payload string) json.RawMessage {
	if json.Valid([]byte(payload)) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(payload)
	return quoted
}

// getPayload reads one raw record, failing with a NotFoundError when it is
// missing.
func getPayload(db *ndb.DB, kind, key string) (string, error) {
	store, err := db.Datastore()
	if err != nil {
		return "", err
	}
	payload, found, err := store.Get(kind, key)
	if err != nil {
		return "", err
	}
	if !found {
		return "", types.NewNotFoundError(kind, key)
	}
	return payload, nil
}

func printList(cmd *cobra.Command, jsonMode bool, items []string) error {
	if jsonMode {
		return writeJSON(cmd, items)
	}
	for _, it := range items {
		fmt.Fprintln(cmd.OutOrStdout(), it)
	}
	return nil
}
