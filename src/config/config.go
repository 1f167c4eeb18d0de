package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DatabaseConfig holds the PostgreSQL connection details.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

func (d DatabaseConfig) GetHost() string     { return d.Host }
func (d DatabaseConfig) GetPort() int        { return d.Port }
func (d DatabaseConfig) GetUser() string     { return d.User }
func (d DatabaseConfig) GetPassword() string { return d.Password }
func (d DatabaseConfig) GetDBName() string   { return d.DBName }

// GlobalConfig holds the full service configuration, read from the
// environment once at startup.
type GlobalConfig struct {
	LogLevel string
	Host     string
	Port     string

	Database DatabaseConfig

	RabbitHost string
	RabbitPort int32
	RabbitUser string
	RabbitPass string

	// Session orchestration tunables.
	ResponseTimeout       time.Duration
	FreeSessionDailyLimit int
	FreeSessionMaxMinutes int
	FreeSessionCredit     decimal.Decimal
	MinAffordableMinutes  int
	NotifyTerminationBoth bool
	QuotaTimezone         *time.Location
}

// NewConfig reads the configuration from the environment. Connection details
// are required; orchestration tunables fall back to platform defaults.
func NewConfig() (GlobalConfig, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		return GlobalConfig{}, fmt.Errorf("LOG_LEVEL environment variable is required")
	}

	host := os.Getenv("HOST")
	if host == "" {
		return GlobalConfig{}, fmt.Errorf("HOST environment variable is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		return GlobalConfig{}, fmt.Errorf("PORT environment variable is required")
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		return GlobalConfig{}, fmt.Errorf("DB_HOST environment variable is required")
	}

	dbPortStr := os.Getenv("DB_PORT")
	if dbPortStr == "" {
		return GlobalConfig{}, fmt.Errorf("DB_PORT environment variable is required")
	}
	dbPort, err := strconv.Atoi(dbPortStr)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("DB_PORT must be a valid integer: %w", err)
	}

	dbUser := os.Getenv("DB_USER")
	if dbUser == "" {
		return GlobalConfig{}, fmt.Errorf("DB_USER environment variable is required")
	}

	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		return GlobalConfig{}, fmt.Errorf("DB_PASSWORD environment variable is required")
	}

	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		return GlobalConfig{}, fmt.Errorf("DB_NAME environment variable is required")
	}

	rabbitHost := os.Getenv("RABBITMQ_HOST")
	if rabbitHost == "" {
		return GlobalConfig{}, fmt.Errorf("RABBITMQ_HOST environment variable is required")
	}

	rabbitPortStr := os.Getenv("RABBITMQ_PORT")
	if rabbitPortStr == "" {
		return GlobalConfig{}, fmt.Errorf("RABBITMQ_PORT environment variable is required")
	}
	rabbitPort, err := strconv.ParseInt(rabbitPortStr, 10, 32)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("RABBITMQ_PORT must be a valid integer: %w", err)
	}

	rabbitUser := os.Getenv("RABBITMQ_USER")
	if rabbitUser == "" {
		return GlobalConfig{}, fmt.Errorf("RABBITMQ_USER environment variable is required")
	}

	rabbitPass := os.Getenv("RABBITMQ_PASS")
	if rabbitPass == "" {
		return GlobalConfig{}, fmt.Errorf("RABBITMQ_PASS environment variable is required")
	}

	responseTimeout, err := intOrDefault("RESPONSE_TIMEOUT_SECONDS", 120)
	if err != nil {
		return GlobalConfig{}, err
	}

	freeDailyLimit, err := intOrDefault("FREE_SESSION_DAILY_LIMIT", 2)
	if err != nil {
		return GlobalConfig{}, err
	}

	freeMaxMinutes, err := intOrDefault("FREE_SESSION_MAX_MINUTES", 5)
	if err != nil {
		return GlobalConfig{}, err
	}

	minAffordable, err := intOrDefault("MIN_AFFORDABLE_MINUTES", 1)
	if err != nil {
		return GlobalConfig{}, err
	}

	freeCreditStr := os.Getenv("FREE_SESSION_PROVIDER_CREDIT")
	if freeCreditStr == "" {
		freeCreditStr = "5"
	}
	freeCredit, err := decimal.NewFromString(freeCreditStr)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("FREE_SESSION_PROVIDER_CREDIT must be a valid decimal: %w", err)
	}

	notifyBoth := true
	if v := os.Getenv("NOTIFY_TERMINATION_BOTH"); v != "" {
		notifyBoth, err = strconv.ParseBool(v)
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("NOTIFY_TERMINATION_BOTH must be a valid boolean: %w", err)
		}
	}

	tzName := os.Getenv("QUOTA_TZ")
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("QUOTA_TZ must be a valid IANA timezone: %w", err)
	}

	return GlobalConfig{
		LogLevel: logLevel,
		Host:     host,
		Port:     port,
		Database: DatabaseConfig{
			Host:     dbHost,
			Port:     dbPort,
			User:     dbUser,
			Password: dbPass,
			DBName:   dbName,
		},
		RabbitHost:            rabbitHost,
		RabbitPort:            int32(rabbitPort),
		RabbitUser:            rabbitUser,
		RabbitPass:            rabbitPass,
		ResponseTimeout:       time.Duration(responseTimeout) * time.Second,
		FreeSessionDailyLimit: freeDailyLimit,
		FreeSessionMaxMinutes: freeMaxMinutes,
		FreeSessionCredit:     freeCredit,
		MinAffordableMinutes:  minAffordable,
		NotifyTerminationBoth: notifyBoth,
		QuotaTimezone:         loc,
	}, nil
}

func intOrDefault(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return n, nil
}

func (c *GlobalConfig) GetHost() string                   { return c.Host }
func (c *GlobalConfig) GetPort() string                   { return c.Port }
func (c *GlobalConfig) GetDatabaseConfig() DatabaseConfig { return c.Database }
func (c *GlobalConfig) GetRabbitMQHost() string           { return c.RabbitHost }
func (c *GlobalConfig) GetRabbitMQPort() int32            { return c.RabbitPort }

// GetRabbitMQURL builds the AMQP dial string for the publisher.
func (c *GlobalConfig) GetRabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.RabbitUser, c.RabbitPass, c.RabbitHost, c.RabbitPort)
}
