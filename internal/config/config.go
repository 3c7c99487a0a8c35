package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pathwise/funnel-cli/internal/cost"
)

// Config holds the full application configuration. The event source
// (standard or ga4) is not configured here: it belongs to each funnel
// definition, which defaults to standard when silent.
type Config struct {
	BigQuery  BigQueryConfig  `yaml:"bigquery" mapstructure:"bigquery"`
	Warehouse WarehouseConfig `yaml:"warehouse" mapstructure:"warehouse"`
	ABTest    ABTestConfig    `yaml:"abtest" mapstructure:"abtest"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BigQueryConfig locates the BigQuery events export.
type BigQueryConfig struct {
	ProjectID       string `yaml:"project_id" mapstructure:"project_id"`
	Dataset         string `yaml:"dataset" mapstructure:"dataset"`
	Table           string `yaml:"table" mapstructure:"table"`
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	Location        string `yaml:"location" mapstructure:"location"`
}

// EventsTable returns the fully qualified events table path. A table value
// that already carries a dataset qualifier is used as-is, which is how GA4
// sharded exports like "proj.dataset.events_*" are configured.
func (c BigQueryConfig) EventsTable() string {
	if strings.Contains(c.Table, ".") {
		return c.Table
	}
	return c.ProjectID + "." + c.Dataset + "." + c.Table
}

// WarehouseConfig locates the Postgres events mirror.
type WarehouseConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// ABTestConfig locates the experiment assignment table.
type ABTestConfig struct {
	Table        string `yaml:"table" mapstructure:"table"`
	UserIDColumn string `yaml:"user_id_column" mapstructure:"user_id_column"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty defaults register the key so env overrides bind.
	rates := cost.DefaultRates()
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "")
	v.SetDefault("bigquery.table", "events")
	v.SetDefault("bigquery.credentials_file", "")
	v.SetDefault("bigquery.location", "")
	v.SetDefault("warehouse.database_url", "")
	v.SetDefault("warehouse.table", "events")
	v.SetDefault("abtest.table", "")
	v.SetDefault("abtest.user_id_column", "googleID")
	v.SetDefault("pricing.bigquery.usd_per_tib", rates.BigQuery.USDPerTiB)
	v.SetDefault("pricing.bigquery.min_billed_bytes", rates.BigQuery.MinBilledBytes)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration can support the given mode:
// "bigquery" for commands that query BigQuery, "postgres" for the
// warehouse executor, "abtest" for experiment analysis.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "bigquery":
		problems = c.bigqueryProblems(problems)
	case "postgres":
		if c.Warehouse.DatabaseURL == "" {
			problems = append(problems, "warehouse.database_url is required")
		}
	case "abtest":
		problems = c.bigqueryProblems(problems)
		if c.ABTest.Table == "" {
			problems = append(problems, "abtest.table is required")
		}
		if c.ABTest.UserIDColumn == "" {
			problems = append(problems, "abtest.user_id_column is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pricing.BigQuery.USDPerTiB < 0 {
		problems = append(problems, "pricing.bigquery.usd_per_tib must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) bigqueryProblems(problems []string) []string {
	if c.BigQuery.ProjectID == "" {
		problems = append(problems, "bigquery.project_id is required")
	}
	if c.BigQuery.Dataset == "" && !strings.Contains(c.BigQuery.Table, ".") {
		problems = append(problems, "bigquery.dataset is required when bigquery.table is not fully qualified")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
