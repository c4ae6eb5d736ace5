package util

import (
	"errors"
	"fmt"
	_ "github.com/joho/godotenv/autoload"
	"net/url"
	"os"
	"strconv"
	"time"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindDuration
)

type configValue struct {
	envVarName   string
	required     bool
	errorMessage string
	defaultValue string
	kind         valueKind
	Value        string
}

// Int returns the value parsed as an integer. Values are validated on load,
// so a zero is only returned for an unset optional value.
func (v configValue) Int() int {
	i, _ := strconv.Atoi(v.Value)
	return i
}

func (v configValue) Duration() time.Duration {
	d, _ := time.ParseDuration(v.Value)
	return d
}

const (
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

// DefaultEmployerIds are the hh.ru employers loaded when EMPLOYER_IDS is not set.
const DefaultEmployerIds = "1942330,49357,3036416,78638,2748,1740,3529,23427,3772,15478,1122462"

type Config struct {
	DbDriver           configValue
	DbConnectionString configValue
	DbHost             configValue
	DbPort             configValue
	DbUser             configValue
	DbPassword         configValue
	DbName             configValue
	DbSslMode          configValue
	SqlitePath         configValue
	HhApiUrl           configValue
	HhUserAgent        configValue
	HhPerPage          configValue
	HttpTimeout        configValue
	EmployerIds        configValue
	FetchMaxRetries    configValue
	FetchBackoffUnit   configValue
	FetchWorkers       configValue
	RedisUrl           configValue
	EmployerCacheTtl   configValue
	IngestSchedule     configValue
	SeqUrl             configValue
	SeqToken           configValue
	Environment        configValue
	LogLevel           configValue
	LogFile            configValue
}

func NewConfig() *Config {
	return &Config{
		DbDriver:           configValue{envVarName: "DB_DRIVER", defaultValue: DriverPostgres},
		DbConnectionString: configValue{envVarName: "DB_CONNECTION_STRING"},
		DbHost:             configValue{envVarName: "DB_HOST", defaultValue: "localhost"},
		DbPort:             configValue{envVarName: "DB_PORT", defaultValue: "5432", kind: kindInt},
		DbUser:             configValue{envVarName: "DB_USER", defaultValue: "postgres"},
		DbPassword:         configValue{envVarName: "DB_PASSWORD"},
		DbName:             configValue{envVarName: "DB_NAME", defaultValue: "hh_db"},
		DbSslMode:          configValue{envVarName: "DB_SSLMODE", defaultValue: "disable"},
		SqlitePath:         configValue{envVarName: "SQLITE_PATH", defaultValue: "hh.db"},
		HhApiUrl: configValue{
			envVarName:   "HH_API_URL",
			required:     true,
			defaultValue: "https://api.hh.ru",
			errorMessage: "make sure that environment variable HH_API_URL points to the hh.ru api",
		},
		HhUserAgent:      configValue{envVarName: "HH_USER_AGENT", defaultValue: "hh-vacancy-loader/1.0"},
		HhPerPage:        configValue{envVarName: "HH_PER_PAGE", defaultValue: "100", kind: kindInt},
		HttpTimeout:      configValue{envVarName: "HTTP_TIMEOUT", defaultValue: "15s", kind: kindDuration},
		EmployerIds:      configValue{envVarName: "EMPLOYER_IDS", defaultValue: DefaultEmployerIds},
		FetchMaxRetries:  configValue{envVarName: "FETCH_MAX_RETRIES", defaultValue: "3", kind: kindInt},
		FetchBackoffUnit: configValue{envVarName: "FETCH_BACKOFF_UNIT", defaultValue: "1s", kind: kindDuration},
		FetchWorkers:     configValue{envVarName: "FETCH_WORKERS", defaultValue: "1", kind: kindInt},
		RedisUrl:         configValue{envVarName: "REDIS_URL"},
		EmployerCacheTtl: configValue{envVarName: "EMPLOYER_CACHE_TTL", defaultValue: "24h", kind: kindDuration},
		IngestSchedule:   configValue{envVarName: "INGEST_SCHEDULE"},
		SeqUrl:           configValue{envVarName: "SEQ_URL"},
		SeqToken:         configValue{envVarName: "SEQ_TOKEN"},
		Environment:      configValue{envVarName: "ENVIRONMENT", defaultValue: "development"},
		LogLevel:         configValue{envVarName: "LOG_LEVEL", defaultValue: "info"},
		LogFile:          configValue{envVarName: "LOG_FILE"},
	}
}

func (c *Config) values() []*configValue {
	return []*configValue{
		&c.DbDriver, &c.DbConnectionString, &c.DbHost, &c.DbPort, &c.DbUser,
		&c.DbPassword, &c.DbName, &c.DbSslMode, &c.SqlitePath,
		&c.HhApiUrl, &c.HhUserAgent, &c.HhPerPage, &c.HttpTimeout,
		&c.EmployerIds, &c.FetchMaxRetries, &c.FetchBackoffUnit, &c.FetchWorkers,
		&c.RedisUrl, &c.EmployerCacheTtl, &c.IngestSchedule,
		&c.SeqUrl, &c.SeqToken, &c.Environment, &c.LogLevel, &c.LogFile,
	}
}

// LoadConfig reads every value from the environment (and .env, if present).
func LoadConfig() (*Config, error) {
	config := NewConfig()

	for _, v := range config.values() {
		if err := populateEnv(v); err != nil {
			return nil, err
		}
	}

	switch config.DbDriver.Value {
	case DriverPostgres, DriverSqlite:
	default:
		return nil, fmt.Errorf("unsupported %s %q, expected %s or %s",
			config.DbDriver.envVarName, config.DbDriver.Value, DriverPostgres, DriverSqlite)
	}

	if config.FetchMaxRetries.Int() < 0 {
		return nil, fmt.Errorf("%s must not be negative", config.FetchMaxRetries.envVarName)
	}

	if config.FetchWorkers.Int() < 1 {
		return nil, fmt.Errorf("%s must be at least 1", config.FetchWorkers.envVarName)
	}

	return config, nil
}

func populateEnv(m *configValue) (err error) {
	v := os.Getenv(m.envVarName)
	if v == "" {
		v = m.defaultValue
	}

	if v == "" && m.required {
		if m.errorMessage != "" {
			return errors.New(m.errorMessage)
		}

		return fmt.Errorf("environment variable %s is not set", m.envVarName)
	}

	if v != "" {
		switch m.kind {
		case kindInt:
			if _, err = strconv.Atoi(v); err != nil {
				return fmt.Errorf("environment variable %s is not an integer: %q", m.envVarName, v)
			}
		case kindDuration:
			if _, err = time.ParseDuration(v); err != nil {
				return fmt.Errorf("environment variable %s is not a duration: %q", m.envVarName, v)
			}
		}
	}

	m.Value = v
	return nil
}

// PostgresDsn returns a DSN pointing at database. DB_CONNECTION_STRING wins over
// the DB_* parts when it is set; only its database name is replaced.
func (c *Config) PostgresDsn(database string) (string, error) {
	if c.DbConnectionString.Value != "" {
		u, err := url.Parse(c.DbConnectionString.Value)
		if err != nil {
			return "", fmt.Errorf("invalid %s: %v", c.DbConnectionString.envVarName, err)
		}
		if database != "" {
			u.Path = "/" + database
		}

		return u.String(), nil
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DbUser.Value, c.DbPassword.Value),
		Host:     fmt.Sprintf("%s:%d", c.DbHost.Value, c.DbPort.Int()),
		Path:     "/" + database,
		RawQuery: url.Values{"sslmode": {c.DbSslMode.Value}}.Encode(),
	}

	return u.String(), nil
}

// DatabaseName is the target database, taken from DB_CONNECTION_STRING when set.
func (c *Config) DatabaseName() string {
	if c.DbConnectionString.Value != "" {
		if u, err := url.Parse(c.DbConnectionString.Value); err == nil && len(u.Path) > 1 {
			return u.Path[1:]
		}
	}

	return c.DbName.Value
}
