package mysql

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/spf13/cast"

	porm "github.com/satishbabariya/porm-go"
)

// Cursor classes accepted by Config.CursorClass.
const (
	CursorDict  = "dict"
	CursorTuple = "tuple"
)

// Config holds the connection parameters.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DB          string
	Charset     string
	Autocommit  bool
	CursorClass string
	// Params are passed to the driver untouched as DSN parameters.
	Params map[string]string
}

// DefaultConfig returns the default connection parameters.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        3306,
		User:        "root",
		DB:          "PORM_DATABASE",
		Charset:     "utf8",
		Autocommit:  false,
		CursorClass: CursorDict,
	}
}

// ConfigFromMap builds a Config from a mapping on top of DefaultConfig.
// Recognized keys are host, port, user, password, db (or database),
// charset, autocommit and cursorclass; every other key is kept in Params.
func ConfigFromMap(m map[string]any) (Config, error) {
	const op = "mysql.ConfigFromMap"
	cfg := DefaultConfig()

	for key, raw := range m {
		var err error
		switch strings.ToLower(key) {
		case "host":
			cfg.Host, err = cast.ToStringE(raw)
		case "port":
			cfg.Port, err = cast.ToIntE(raw)
		case "user":
			cfg.User, err = cast.ToStringE(raw)
		case "password", "passwd":
			cfg.Password, err = cast.ToStringE(raw)
		case "db", "database":
			cfg.DB, err = cast.ToStringE(raw)
		case "charset":
			cfg.Charset, err = cast.ToStringE(raw)
		case "autocommit":
			cfg.Autocommit, err = cast.ToBoolE(raw)
		case "cursorclass":
			cfg.CursorClass, err = cast.ToStringE(raw)
		default:
			var v string
			v, err = cast.ToStringE(raw)
			if err == nil {
				if cfg.Params == nil {
					cfg.Params = map[string]string{}
				}
				cfg.Params[key] = v
			}
		}
		if err != nil {
			return Config{}, porm.NewError(porm.KindParam, op, "invalid value for %s: %v", key, err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	const op = "mysql.Config"
	if c.Host == "" {
		return porm.NewError(porm.KindEmpty, op, "host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return porm.NewError(porm.KindParam, op, "invalid port %d", c.Port)
	}
	switch c.CursorClass {
	case "", CursorDict, CursorTuple:
	default:
		return porm.NewError(porm.KindNotSupported, op, "cursor class %q", c.CursorClass)
	}
	return nil
}

// Driver returns the go-sql-driver configuration.
func (c Config) Driver() *mysqldrv.Config {
	cfg := mysqldrv.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	cfg.DBName = c.DB

	params := map[string]string{"autocommit": "0"}
	if c.Autocommit {
		params["autocommit"] = "1"
	}
	if c.Charset != "" {
		params["charset"] = c.Charset
	}
	for k, v := range c.Params {
		params[k] = v
	}
	cfg.Params = params
	return cfg
}

// DSN returns the data source name for sql.Open.
func (c Config) DSN() string {
	return c.Driver().FormatDSN()
}

// String returns the DSN with the password masked.
func (c Config) String() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "****"
	}
	return fmt.Sprintf("mysql://%s", masked.DSN())
}
