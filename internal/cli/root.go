// Package cli implements the ndb command-line interface: a small tool for
// inspecting and moving the raw records of any configured datastore.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/ndb/internal/logging"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	backend   string
	path      string
	verbose   bool
	jsonMode  bool
}

// app is the state shared by one invocation of the root command.
type app struct {
	flags  rootFlags
	cfg    types.Config
	logger *zap.Logger
}

// NewRootCmd creates the top-level "ndb" command with global flags and all
// subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "ndb",
		Short: "Inspect and move the records of an ndb datastore",
		Long: "ndb lists, reads, deletes, exports and imports the records held by an\n" +
			"ndb datastore on any supported backend.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.backend, "backend", "", fmt.Sprintf("datastore backend %v", types.KnownBackends()))
	pf.StringVar(&a.flags.path, "path", "", "datastore file or directory for on-disk backends")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &userError{err: err}
	})

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(a),
		newKindsCmd(a),
		newKeysCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}

// load resolves the effective configuration and logger before any
// subcommand runs.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.flags)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewTo(cmd.ErrOrStderr(), cfg.Verbose)
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitCode(err)
}

// userError marks errors caused by the invocation rather than the system.
type userError struct{ err error }

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func userErrorf(format string, args ...any) error {
	return &userError{err: fmt.Errorf(format, args...)}
}

// exactArgs is cobra.ExactArgs reporting a user error. Empty arguments
// are rejected too.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &userError{err: err}
		}
		for i, arg := range args {
			if arg == "" {
				return userErrorf("argument %d of %s must not be empty", i+1, cmd.Name())
			}
		}
		return nil
	}
}

// exitCode maps an error to exitUserError for bad input, missing records
// and invalid configuration, and to exitSysError for everything else.
func exitCode(err error) int {
	var ue *userError
	switch {
	case err == nil:
		return exitSuccess
	case errors.As(err, &ue),
		types.IsNotFound(err),
		types.IsValidationError(err),
		types.IsDuplicateOpen(err),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, types.ErrBackendEmpty),
		errors.Is(err, types.ErrBackendUnknown),
		errors.Is(err, types.ErrDynamoDBTable):
		return exitUserError
	}
	return exitSysError
}
