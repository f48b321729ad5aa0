package commands

import (
	"context"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/cli/internal/config"
	"github.com/satishbabariya/porm-go/database/api"
	"github.com/satishbabariya/porm-go/database/api/mysql"
	"github.com/satishbabariya/porm-go/internal/debug"
)

// openDB connects to the server. Tests swap it for a mock pool.
var openDB = mysql.Open

// askPassword prompts for the password on the terminal.
var askPassword = func() (string, error) {
	var pw string
	err := survey.AskOne(&survey.Password{Message: "Password:"}, &pw)
	return pw, err
}

// connConfig merges the configuration file, the environment and the flags
// that were set explicitly.
func (o *rootOptions) connConfig(cmd *cobra.Command) (mysql.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return mysql.Config{}, err
	}
	if cfg.Debug {
		debug.Init(true)
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = o.host
	}
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("user") {
		cfg.User = o.user
	}
	if flags.Changed("password") {
		cfg.Password = o.password
	}
	if flags.Changed("db") {
		cfg.DB = o.db
	}
	if o.askPassword {
		pw, err := askPassword()
		if err != nil {
			return mysql.Config{}, porm.Wrap(porm.KindParam, "commands.connConfig", err)
		}
		cfg.Password = pw
	}
	return cfg.MySQL()
}

// open connects with the merged configuration. The returned context carries
// its own connection slot.
func (o *rootOptions) open(cmd *cobra.Command, opts ...api.Option) (context.Context, *mysql.DB, error) {
	cfg, err := o.connConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	ctx := api.WithSlot(cmd.Context())
	opts = append([]api.Option{api.WithLogger(debug.Logger())}, opts...)
	db, err := openDB(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	debug.Debug("connected", "dsn", cfg.String())
	return ctx, db, nil
}

func shutdown(ctx context.Context, db *mysql.DB) {
	if err := db.Shutdown(ctx); err != nil {
		debug.Warn("shutdown failed", "error", err)
	}
}
