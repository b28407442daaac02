package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		Name          string `mapstructure:"name"`
		SSLMode       string `mapstructure:"sslmode"`
		MigrationsDir string `mapstructure:"migrations_dir"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Store struct {
		// Driver is "postgres" or "memory".
		Driver string `mapstructure:"driver"`
	} `mapstructure:"store"`
	Transfer struct {
		InstantCeiling string        `mapstructure:"instant_ceiling"`
		DailyLimit     int           `mapstructure:"daily_limit"`
		LockTimeout    time.Duration `mapstructure:"lock_timeout"`
		MaxRetries     int           `mapstructure:"max_retries"`
		Timezone       string        `mapstructure:"timezone"`
	} `mapstructure:"transfer"`
	Worker struct {
		CommandStream string        `mapstructure:"command_stream"`
		EventStream   string        `mapstructure:"event_stream"`
		Group         string        `mapstructure:"group"`
		Consumer      string        `mapstructure:"consumer"`
		BatchSize     int64         `mapstructure:"batch_size"`
		Block         time.Duration `mapstructure:"block"`
		ClaimInterval time.Duration `mapstructure:"claim_interval"`
	} `mapstructure:"worker"`
	Auth struct {
		MaxAttempts int `mapstructure:"max_attempts"`
		BcryptCost  int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	JWT struct {
		SecretKey  string        `mapstructure:"secret_key"`
		AccessTTL  time.Duration `mapstructure:"access_ttl"`
		RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	} `mapstructure:"jwt"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_dir", "db/migrations")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("transfer.instant_ceiling", "15000.00")
	v.SetDefault("transfer.daily_limit", 10)
	v.SetDefault("transfer.lock_timeout", 5*time.Second)
	v.SetDefault("transfer.max_retries", 3)
	v.SetDefault("transfer.timezone", "Europe/Paris")
	v.SetDefault("worker.command_stream", "ledger.commands")
	v.SetDefault("worker.event_stream", "ledger.events")
	v.SetDefault("worker.group", "ledger-core")
	v.SetDefault("worker.consumer", "ledger-core-1")
	v.SetDefault("worker.batch_size", 10)
	v.SetDefault("worker.block", 5*time.Second)
	v.SetDefault("worker.claim_interval", 30*time.Second)
	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("jwt.access_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yml from path, overlays environment variables
// (DATABASE_HOST, TRANSFER_DAILY_LIMIT, ...) and returns the result.
// A missing config file is not an error; defaults and env still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("Error reading config, %s", err)
	}
	AppConfig = cfg
}
