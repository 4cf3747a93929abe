package types

import (
	"errors"
	"fmt"
)

// Config holds backend selection and parameters. It is consumed once when
// a datastore is opened; the entity layer never reads it.
type Config struct {
	Backend  string          `json:"backend" yaml:"backend" mapstructure:"backend"`
	Path     string          `json:"path" yaml:"path" mapstructure:"path"`
	Verbose  bool            `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
	DynamoDB *DynamoDBConfig `json:"dynamodb,omitempty" yaml:"dynamodb,omitempty" mapstructure:"dynamodb"`
}

// DynamoDBConfig holds the parameters of the dynamodb backend. Empty
// credentials fall back to the AWS default credential chain.
type DynamoDBConfig struct {
	Table     string `json:"table" yaml:"table" mapstructure:"table"`
	Region    string `json:"region" yaml:"region" mapstructure:"region"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
	// Namespace prefixes every partition key so several datastores can
	// share one table.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty" mapstructure:"namespace"`
}

// Supported backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBolt     = "bolt"
	BackendLevelDB  = "leveldb"
	BackendDynamoDB = "dynamodb"
)

// DefaultPath is the on-disk location used when no path is configured.
const DefaultPath = "datastore.db"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDynamoDBTable  = errors.New("dynamodb backend requires a table name")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendMemory:   true,
	BackendSQLite:   true,
	BackendBolt:     true,
	BackendLevelDB:  true,
	BackendDynamoDB: true,
}

// KnownBackends returns the accepted backend names in display order.
func KnownBackends() []string {
	return []string{BackendMemory, BackendSQLite, BackendBolt, BackendLevelDB, BackendDynamoDB}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	if c.Backend == BackendDynamoDB && (c.DynamoDB == nil || c.DynamoDB.Table == "") {
		return ErrDynamoDBTable
	}
	return nil
}

// OnDisk reports whether the configured backend stores data under Path.
func (c Config) OnDisk() bool {
	switch c.Backend {
	case BackendSQLite, BackendBolt, BackendLevelDB:
		return true
	}
	return false
}
