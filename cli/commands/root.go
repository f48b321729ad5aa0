// Package commands implements the porm command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/porm-go/cli/internal/ui"
	"github.com/satishbabariya/porm-go/cli/internal/version"
	"github.com/satishbabariya/porm-go/internal/debug"
)

// rootOptions are the connection flags shared by every command.
type rootOptions struct {
	configFile  string
	host        string
	port        int
	user        string
	password    string
	db          string
	askPassword bool
	debug       bool
}

// Execute runs the porm command with the process arguments.
func Execute() error {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		ui.New(root.OutOrStdout(), root.ErrOrStderr()).Error("%v", err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "porm",
		Short:         "Query and script MySQL through porm",
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.debug {
				debug.Init(true)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "configuration file (default .porm.yaml)")
	flags.StringVar(&opts.host, "host", "", "server host")
	flags.IntVar(&opts.port, "port", 0, "server port")
	flags.StringVarP(&opts.user, "user", "u", "", "user name")
	flags.StringVar(&opts.password, "password", "", "password")
	flags.StringVar(&opts.db, "db", "", "default database")
	flags.BoolVarP(&opts.askPassword, "ask-password", "p", false, "prompt for the password")
	flags.BoolVar(&opts.debug, "debug", false, "log every statement to stderr")

	root.AddCommand(
		newPingCommand(opts),
		newQueryCommand(opts),
		newExecCommand(opts),
		newFilterCommand(),
		newFiltersCommand(),
		newVersionCommand(),
	)
	return root
}

func printer(cmd *cobra.Command) *ui.Printer {
	return ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
}
