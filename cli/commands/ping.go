package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/porm-go/database/api/mysql"
)

func newPingCommand(opts *rootOptions) *cobra.Command {
	minimum := mysql.MinServerVersion
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the server answers and is recent enough",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer shutdown(ctx, db)

			v, err := db.CheckServerVersion(ctx, minimum)
			if err != nil {
				return err
			}
			cfg := db.Config()
			p := printer(cmd)
			p.Success("connected to %s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.DB)
			p.Info("server version %s (minimum %s)", v.Original(), minimum)
			return nil
		},
	}
	cmd.Flags().StringVar(&minimum, "min-version", minimum, "oldest acceptable server version")
	return cmd
}
