package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/ndb/internal/paths"
	"github.com/mesh-intelligence/ndb/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend = "backend"
	cfgKeyPath    = "path"
	cfgKeyVerbose = "verbose"

	defaultBackend = types.BackendSQLite
)

// envKeys are the config keys read from NDB_* variables. path is resolved
// separately so that config.yaml wins over NDB_PATH.
var envKeys = []string{
	cfgKeyBackend,
	cfgKeyVerbose,
	"dynamodb.table",
	"dynamodb.region",
	"dynamodb.endpoint",
	"dynamodb.access_key",
	"dynamodb.secret_key",
	"dynamodb.namespace",
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# ndb configuration

# Backend: memory, sqlite, bolt, leveldb or dynamodb
backend: sqlite

# Datastore file or directory for on-disk backends (optional;
# overridable by --path)
# path:

# dynamodb:
#   table: ndb
#   region: us-east-1
#   endpoint: http://localhost:8000
`

// loadConfig reads config.yaml from the resolved config directory, creating
// the directory and a default file on first run, then applies NDB_*
// variables and flags.
func loadConfig(f rootFlags) (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(f.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyVerbose, false)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("NDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return types.Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DynamoDB != nil && *cfg.DynamoDB == (types.DynamoDBConfig{}) {
		cfg.DynamoDB = nil
	}

	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.verbose {
		cfg.Verbose = true
	}
	if cfg.OnDisk() {
		cfg.Path, err = paths.ResolvePath(f.path, v.GetString(cfgKeyPath))
		if err != nil {
			return types.Config{}, fmt.Errorf("resolve datastore path: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates the config directory and a default
// config.yaml if the file does not exist.
func ensureDefaultConfigFile(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return err
	}
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// redacted returns cfg with secrets masked for display.
func redacted(cfg types.Config) types.Config {
	if cfg.DynamoDB != nil {
		d := *cfg.DynamoDB
		if d.SecretKey != "" {
			d.SecretKey = "****"
		}
		cfg.DynamoDB = &d
	}
	return cfg
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := redacted(a.cfg)
			if a.flags.jsonMode {
				return writeJSON(cmd, cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}
