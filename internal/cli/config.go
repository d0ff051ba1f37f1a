package cli

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"

	"github.com/novabot/dbupdate"
	"github.com/novabot/dbupdate/pkg/dialect"
	"github.com/novabot/dbupdate/pkg/migrator"
)

const (
	maxWalkDepth = 25
	envPrefix    = "DBUPDATE"
)

// configFileNames are tried in order in each directory.
var configFileNames = []string{"dbupdate.yaml", "dbupdate.yml"}

// Config represents the dbupdate configuration from dbupdate.yaml.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Migrate  MigrateConfig  `mapstructure:"migrate" json:"migrate"`
	Metrics  MetricsConfig  `mapstructure:"metrics" json:"metrics"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the dialect: postgres, mysql or sqlite.
	Driver string `mapstructure:"driver" json:"driver"`

	URL      string `mapstructure:"url" json:"url,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     int    `mapstructure:"port" json:"port,omitempty"`
	Name     string `mapstructure:"name" json:"name,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode,omitempty"`

	// Path is the database file for sqlite.
	Path string `mapstructure:"path" json:"path,omitempty"`
}

// MigrateConfig holds migration settings.
type MigrateConfig struct {
	BaseTable     string `mapstructure:"base_table" json:"base_table"`
	MetaTable     string `mapstructure:"meta_table" json:"meta_table"`
	VersionKey    string `mapstructure:"version_key" json:"version_key"`
	StrictProbe   bool   `mapstructure:"strict_probe" json:"strict_probe"`
	StrictChain   bool   `mapstructure:"strict_chain" json:"strict_chain"`
	Transactional bool   `mapstructure:"transactional" json:"transactional"`
	DryRun        bool   `mapstructure:"dry_run" json:"dry_run"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, receives the Prometheus metrics after migrate.
	Textfile string `mapstructure:"textfile" json:"textfile,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none found),
// and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("database.path", "")

	// Migrate defaults
	v.SetDefault("migrate.base_table", dbupdate.DefaultBaseTable)
	v.SetDefault("migrate.meta_table", dbupdate.DefaultMetaTable)
	v.SetDefault("migrate.version_key", dbupdate.DefaultVersionKey)
	v.SetDefault("migrate.strict_probe", false)
	v.SetDefault("migrate.strict_chain", false)
	v.SetDefault("migrate.transactional", true)
	v.SetDefault("migrate.dry_run", false)

	// Metrics defaults
	v.SetDefault("metrics.textfile", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for dbupdate.yaml or dbupdate.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Stop at the repo root (.git file or directory)
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// Dialect returns the dialect selected by database.driver.
func (c *Config) Dialect() (dialect.Dialect, error) {
	return dialect.ByName(c.Database.Driver)
}

// Validate checks the settings that cannot be caught by the type system.
func (c *Config) Validate() error {
	if _, err := c.Dialect(); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if err := dialect.ValidateIdentifier(c.Migrate.BaseTable, "migrate.base_table"); err != nil {
		return err
	}
	if err := dialect.ValidateIdentifier(c.Migrate.MetaTable, "migrate.meta_table"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Migrate.VersionKey) == "" {
		return fmt.Errorf("migrate.version_key cannot be empty")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json (got: %s)", c.Log.Format)
	}
	return nil
}

// ProbeConfig maps the migrate section onto the probe settings.
func (c *Config) ProbeConfig() migrator.ProbeConfig {
	return migrator.ProbeConfig{
		BaseTable:   c.Migrate.BaseTable,
		MetaTable:   c.Migrate.MetaTable,
		VersionKey:  c.Migrate.VersionKey,
		StrictProbe: c.Migrate.StrictProbe,
	}
}

// DSN returns the database connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields in the driver's format.
func (c *Config) DSN() (string, error) {
	db := c.Database

	if db.URL != "" {
		return db.URL, nil
	}

	d, err := c.Dialect()
	if err != nil {
		return "", err
	}

	if d.Name() == "sqlite" {
		if db.Path == "" {
			return "", fmt.Errorf("database.path is required for sqlite when database.url is not set")
		}
		return db.Path, nil
	}

	// Build DSN from discrete fields
	if db.Host == "" {
		return "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", fmt.Errorf("database.user is required when database.url is not set")
	}

	if d.Name() == "mysql" {
		return c.mysqlDSN(), nil
	}
	return c.postgresDSN(), nil
}

func (c *Config) postgresDSN() string {
	db := c.Database
	port := db.Port
	if port == 0 {
		port = 5432
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return u.String()
}

func (c *Config) mysqlDSN() string {
	db := c.Database
	port := db.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = db.User
	mc.Passwd = db.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(db.Host, strconv.Itoa(port))
	mc.DBName = db.Name
	mc.TLSConfig = mysqlTLS(db.SSLMode)
	return mc.FormatDSN()
}

// mysqlTLS maps libpq-style sslmode values onto the mysql driver's tls
// parameter.
func mysqlTLS(sslmode string) string {
	switch strings.ToLower(sslmode) {
	case "disable":
		return "false"
	case "prefer":
		return "preferred"
	case "require", "verify-ca", "verify-full":
		return "true"
	default:
		return ""
	}
}

// Redacted returns a copy safe for printing, with the password masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.Password != "" {
		out.Database.Password = redactedPassword
	}
	out.Database.URL = redactDSN(out.Database.URL)
	return &out
}

const redactedPassword = "redacted"

// keywordPassword matches password=... in a libpq keyword/value DSN.
var keywordPassword = regexp.MustCompile(`(?i)\bpassword\s*=\s*('(?:[^'\\]|\\.)*'|\S+)`)

// redactDSN masks the password in a URL, libpq keyword or MySQL DSN.
func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	if strings.Contains(dsn, "://") {
		u, err := url.Parse(dsn)
		if err != nil || u.User == nil {
			return dsn
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedPassword)
			return u.String()
		}
		return dsn
	}
	if keywordPassword.MatchString(dsn) {
		return keywordPassword.ReplaceAllString(dsn, "password="+redactedPassword)
	}
	if mc, err := mysql.ParseDSN(dsn); err == nil {
		if mc.Passwd != "" {
			mc.Passwd = redactedPassword
			return mc.FormatDSN()
		}
	}
	return dsn
}
