package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress  string        `mapstructure:"SERVER_ADDRESS"`
	PostgresConn   string        `mapstructure:"POSTGRES_CONN"`
	PostgresURL    string        `mapstructure:"POSTGRES_JDBC_URL"`
	PostgresUser   string        `mapstructure:"POSTGRES_USERNAME"`
	PostgresPass   string        `mapstructure:"POSTGRES_PASSWORD"`
	PostgresHost   string        `mapstructure:"POSTGRES_HOST"`
	PostgresPort   string        `mapstructure:"POSTGRES_PORT"`
	PostgresDB     string        `mapstructure:"POSTGRES_DATABASE"`
	MigrationURL   string        `mapstructure:"MIGRATION_URL"`
	AuditConn      string        `mapstructure:"AUDIT_CONN"`
	NatsURL        string        `mapstructure:"NATS_URL"`
	NatsSubject    string        `mapstructure:"NATS_SUBJECT"`
	SecretTTL      time.Duration `mapstructure:"SECRET_TTL"`
	PINLength      int           `mapstructure:"PIN_LENGTH"`
	BcryptCost     int           `mapstructure:"BCRYPT_COST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	NotifyTimeout  time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	VerifyRPS      float64       `mapstructure:"VERIFY_RPS"`
	VerifyBurst    int           `mapstructure:"VERIFY_BURST"`
	SweepInterval  time.Duration `mapstructure:"SWEEP_INTERVAL"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":    "0.0.0.0:8080",
	"POSTGRES_CONN":     "",
	"POSTGRES_JDBC_URL": "",
	"POSTGRES_USERNAME": "",
	"POSTGRES_PASSWORD": "",
	"POSTGRES_HOST":     "",
	"POSTGRES_PORT":     "",
	"POSTGRES_DATABASE": "",
	"MIGRATION_URL":     "file://migrations",
	"AUDIT_CONN":        "",
	"NATS_URL":          "",
	"NATS_SUBJECT":      "procurement.notifications",
	"SECRET_TTL":        "30m",
	"PIN_LENGTH":        6,
	"BCRYPT_COST":       10,
	"REQUEST_TIMEOUT":   "5s",
	"NOTIFY_TIMEOUT":    "5s",
	"VERIFY_RPS":        1.0,
	"VERIFY_BURST":      5,
	"SWEEP_INTERVAL":    "0s",
	"LOG_LEVEL":         "info",
}

// LoadConfig загружает конфигурацию из файла app.env. Переменные окружения
// имеют приоритет над файлом, а отсутствие файла не считается ошибкой.
func LoadConfig(path string) (cfg Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}
	if err = v.Unmarshal(&cfg); err != nil {
		return
	}
	if cfg.AuditConn == "" {
		cfg.AuditConn = cfg.PostgresConn
	}
	err = cfg.Validate()
	return
}

// Validate проверяет значения, от которых зависит безопасность PIN.
func (c Config) Validate() error {
	if c.SecretTTL <= 0 {
		return fmt.Errorf("SECRET_TTL must be positive")
	}
	if c.PINLength < 4 || c.PINLength > 12 {
		return fmt.Errorf("PIN_LENGTH must be in [4:12]")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be in [4:31]")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.VerifyRPS <= 0 || c.VerifyBurst <= 0 {
		return fmt.Errorf("VERIFY_RPS and VERIFY_BURST must be positive")
	}
	return nil
}

// SweepEnabled сообщает, нужен ли встроенный обход сроков в serve.
// По умолчанию сроки обрабатывает внешний планировщик командами close-quotes и expire-awards.
func (c Config) SweepEnabled() bool {
	return c.SweepInterval > 0
}
