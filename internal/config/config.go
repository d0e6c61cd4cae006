package config

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"prod" validate:"oneof=local dev prod"`
	HTTPServer `yaml:"http_server"`
	CORS       CORS     `yaml:"cors"`
	Database   Database `yaml:"database"`
	Sync       Sync     `yaml:"sync"`
	Log        Log      `yaml:"log"`

	AdminLogin string `yaml:"admin_login" env:"ADMIN_LOGIN" validate:"required"`
	AdminPass  string `yaml:"admin_pass" env:"ADMIN_PASS" validate:"required"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:4001"`
	Timeout     time.Duration `yaml:"timeout" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:5173"`
}

type Database struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"mysql" validate:"oneof=mysql postgres sqlite"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER" validate:"required_unless=Driver sqlite"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME" validate:"required_unless=Driver sqlite"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	// Path is the sqlite database file.
	Path string `yaml:"path" env:"DB_PATH" env-default:"order_sync.db"`

	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"25" validate:"gte=1"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"5" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"30m"`
}

type Sync struct {
	Interval  time.Duration `yaml:"interval" env:"SYNC_INTERVAL" env-default:"5m" validate:"gte=1s"`
	Isolation string        `yaml:"isolation" env:"SYNC_ISOLATION" env-default:"read-committed" validate:"oneof=default read-committed repeatable-read serializable"`
	Parallel  bool          `yaml:"parallel" env:"SYNC_PARALLEL" env-default:"false"`
	Timeout   time.Duration `yaml:"timeout" env:"SYNC_TIMEOUT" env-default:"2m"`
}

type Log struct {
	ErrorFile string `yaml:"error_file" env:"LOG_ERROR_FILE" env-default:"errors.log"`
}

// Load reads the yaml file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: read env: %w", op, err)
	}

	cfg.Database.Port = cfg.Database.port()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

// Path picks the config file: explicit if set, then CONFIG_PATH, then
// ./config/local.yaml.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

// port is the configured port or the driver's default one.
func (d Database) port() int {
	if d.Port != 0 {
		return d.Port
	}
	switch d.Driver {
	case "postgres":
		return 5432
	case "sqlite":
		return 0
	}
	return 3306
}

// DSN builds the data source name for the configured driver.
func (d Database) DSN() string {
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.port())),
			Path:     "/" + d.Name,
			RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
		}
		return u.String()
	case "sqlite":
		return "file:" + d.Path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	mc := mysql.NewConfig()
	mc.User = d.User
	mc.Passwd = d.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.port()))
	mc.DBName = d.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	// affected rows must count matched rows, not only changed ones
	mc.ClientFoundRows = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// TxOptions maps the configured isolation level.
func (s Sync) TxOptions() *sql.TxOptions {
	switch strings.ToLower(s.Isolation) {
	case "read-committed":
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case "repeatable-read":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case "serializable":
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}
