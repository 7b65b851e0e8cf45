// Package config loads and validates the depfile service configuration.
//
// Keys are read from a YAML file and overridable by environment variables
// (e.g. DEPFILE_LOCK_TYPE overrides LOCK_TYPE), the same layered precedence
// the rest of this codebase's ambient stack uses for every other setting.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds every tunable of the depfile service. Field names mirror the
// upper-snake-case keys of the configuration file and environment so the two
// are trivially cross-referenced.
type Config struct {
	ServerHostAndPort string `mapstructure:"SERVER_HOST_AND_PORT" validate:"required,url"`
	SurplusProcessors int    `mapstructure:"SURPLUS_PROCESSORS" validate:"gte=0"`

	RepositoryDirPath string `mapstructure:"REPOSITORY_DIR_PATH" validate:"required"`
	SessionDirPath    string `mapstructure:"SESSION_DIR_PATH" validate:"required"`
	SharedLockPath    string `mapstructure:"SHARED_LOCK_PATH" validate:"required"`
	KVFilePath        string `mapstructure:"KV_FILE_PATH" validate:"required"`

	LockTransactions        bool   `mapstructure:"LOCK_TRANSACTIONS"`
	LockType                string `mapstructure:"LOCK_TYPE" validate:"required,oneof=soft ternary redis"`
	LockTimeout             int    `mapstructure:"LOCK_TIMEOUT" validate:"gte=0"`
	LockSecondTraversalWait int    `mapstructure:"LOCK_SECOND_TRAVERSAL_WAIT" validate:"gte=0"`

	KVMode             string `mapstructure:"KV_MODE" validate:"required,oneof=sqlite redis"`
	RedisHost          string `mapstructure:"REDIS_HOST" validate:"required"`
	KVMapTableName     string `mapstructure:"KV_MAP_TABLE_NAME" validate:"required"`
	KVSessionTableName string `mapstructure:"KV_SESSION_TABLE_NAME" validate:"required"`
	KVLockTableName    string `mapstructure:"KV_LOCK_TABLE_NAME" validate:"required"`
	KVMaxSeconds       int    `mapstructure:"KV_MAX_SECONDS" validate:"gte=0"`

	ChunkSize              int64  `mapstructure:"CHUNK_SIZE" validate:"gte=0"`
	CompressionType        string `mapstructure:"COMPRESSION_TYPE" validate:"required,oneof=gzip zip bzip2 lzma"`
	HashType               string `mapstructure:"HASH_TYPE" validate:"required,oneof=MD5 SHA1 SHA256"`
	DefaultFilePermissions uint32 `mapstructure:"DEFAULT_FILE_PERMISSIONS"`

	JWTSubject   string `mapstructure:"JWT_SUBJECT" validate:"required"`
	JWTSecret    string `mapstructure:"JWT_SECRET" validate:"required"`
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM" validate:"required,oneof=HS256 HS384 HS512 ES256 ES256K ES384 ES512 RS256 RS384 RS512 PS256 PS384 PS512 EdDSA"`
	JWTDuration  int    `mapstructure:"JWT_DURATION" validate:"gte=0"`

	BypassAuthorization bool `mapstructure:"BYPASS_AUTHORIZATION"`

	SweepIntervalSeconds int `mapstructure:"SWEEP_INTERVAL_SECONDS" validate:"gte=0"`
	StaleLockAgeSeconds  int `mapstructure:"STALE_LOCK_AGE_SECONDS" validate:"gte=0"`
}

// Load reads the configuration file at path (YAML) and layers in any
// DEPFILE_-prefixed environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DEPFILE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "error decoding config")
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOCK_TRANSACTIONS", true)
	v.SetDefault("LOCK_TIMEOUT", 60)
	v.SetDefault("LOCK_SECOND_TRAVERSAL_WAIT", 5)
	v.SetDefault("KV_MAX_SECONDS", 3600)
	v.SetDefault("CHUNK_SIZE", 1024*1024*32)
	v.SetDefault("COMPRESSION_TYPE", "gzip")
	v.SetDefault("HASH_TYPE", "MD5")
	v.SetDefault("DEFAULT_FILE_PERMISSIONS", 0o664)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_DURATION", 3600)
	v.SetDefault("BYPASS_AUTHORIZATION", false)
	v.SetDefault("KV_MAP_TABLE_NAME", "map")
	v.SetDefault("KV_SESSION_TABLE_NAME", "session")
	v.SetDefault("KV_LOCK_TABLE_NAME", "lock")
	v.SetDefault("SWEEP_INTERVAL_SECONDS", 300)
	v.SetDefault("STALE_LOCK_AGE_SECONDS", 3600)
}

// Validate checks struct-tag constraints plus the cross-field rule that
// KV_MODE and LOCK_TYPE must agree on redis: either both point at the redis
// backend or neither does.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	kvRedis := c.KVMode == "redis"
	lockRedis := c.LockType == "redis"
	if kvRedis != lockRedis {
		return errors.New("invalid configuration: KV_MODE and LOCK_TYPE must agree on redis")
	}
	return nil
}
