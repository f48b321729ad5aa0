// Package config loads the porm command configuration from .porm.yaml,
// PORM_* environment variables and .env files.
package config

import (
	"errors"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/database/api/mysql"
)

// AppFs is the filesystem configuration files are read from.
var AppFs = afero.NewOsFs()

// Config holds the command configuration.
type Config struct {
	Host        string
	Port        int
	User        string
	Password    string
	DB          string
	Charset     string
	Autocommit  bool
	CursorClass string
	Params      map[string]string
	Debug       bool
}

// Load reads the configuration. file overrides the search for .porm.yaml
// in the working directory, $HOME and $HOME/.config/porm. A missing
// configuration file is not an error; a malformed one is.
func Load(file string) (*Config, error) {
	const op = "config.Load"

	loadDotEnv()

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")
	if file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return nil, porm.Wrap(porm.KindParam, op, err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".porm")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "porm"))
		}
	}

	v.SetEnvPrefix("PORM")
	v.AutomaticEnv()

	def := mysql.DefaultConfig()
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("user", def.User)
	v.SetDefault("password", "")
	v.SetDefault("db", def.DB)
	v.SetDefault("charset", def.Charset)
	v.SetDefault("autocommit", def.Autocommit)
	v.SetDefault("cursorclass", def.CursorClass)
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, porm.Wrap(porm.KindParam, op, err)
		}
	}

	return &Config{
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		User:        v.GetString("user"),
		Password:    v.GetString("password"),
		DB:          v.GetString("db"),
		Charset:     v.GetString("charset"),
		Autocommit:  v.GetBool("autocommit"),
		CursorClass: v.GetString("cursorclass"),
		Params:      v.GetStringMapString("params"),
		Debug:       v.GetBool("debug"),
	}, nil
}

// MySQL converts the configuration into validated connection parameters.
func (c *Config) MySQL() (mysql.Config, error) {
	m := map[string]any{
		"host":        c.Host,
		"port":        c.Port,
		"user":        c.User,
		"password":    c.Password,
		"db":          c.DB,
		"charset":     c.Charset,
		"autocommit":  c.Autocommit,
		"cursorclass": c.CursorClass,
	}
	for k, p := range c.Params {
		m[k] = p
	}
	return mysql.ConfigFromMap(m)
}

// loadDotEnv loads .env and then .env.local, which wins. Either may be
// missing.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}
