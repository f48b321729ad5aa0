package commands

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/porm-go/cli/internal/config"
	"github.com/satishbabariya/porm-go/cli/internal/ui"
	"github.com/satishbabariya/porm-go/cli/internal/watch"
	"github.com/satishbabariya/porm-go/database/api"
	"github.com/satishbabariya/porm-go/database/api/mysql"
	"github.com/satishbabariya/porm-go/telemetry"
)

type execOptions struct {
	watch bool
	stats bool
	quiet bool
}

func newExecCommand(opts *rootOptions) *cobra.Command {
	e := &execOptions{}
	cmd := &cobra.Command{
		Use:   "exec <file>",
		Short: "Run a SQL script in one transaction",
		Long: `Run every statement of a SQL script in one transaction. Any failure rolls
the whole script back. With --watch the script runs again whenever it is saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collector := telemetry.New(telemetry.WithEnabled(e.stats))
			ctx, db, err := opts.open(cmd, api.WithMiddleware(collector.Middleware()))
			if err != nil {
				return err
			}
			defer shutdown(ctx, db)

			p := printer(cmd)
			run := func(ctx context.Context) error {
				collector.Reset()
				err := e.run(ctx, db, p, args[0])
				if e.stats {
					if terr := printStats(p, collector.Snapshot()); terr != nil && err == nil {
						err = terr
					}
				}
				return err
			}
			if !e.watch {
				return run(ctx)
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			w, err := watch.NewWatcher(args[0], run, watch.WithErrorHandler(func(err error) {
				p.Error("%v", err)
			}))
			if err != nil {
				return err
			}
			p.Info("watching %s, press Ctrl+C to stop", args[0])
			return w.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&e.watch, "watch", false, "run again whenever the file changes")
	flags.BoolVar(&e.stats, "stats", false, "print statement statistics")
	flags.BoolVarP(&e.quiet, "quiet", "q", false, "do not print result rows")
	return cmd
}

// run executes the script at path inside one atomic scope.
func (e *execOptions) run(ctx context.Context, db *mysql.DB, p *ui.Printer, path string) error {
	script, err := afero.ReadFile(config.AppFs, path)
	if err != nil {
		return err
	}
	stmts := SplitStatements(string(script))
	if len(stmts) == 0 {
		p.Warning("%s has no statements", path)
		return nil
	}

	start := time.Now()
	var affected int64
	err = db.Run(ctx, func(ctx context.Context) error {
		for i, stmt := range stmts {
			cur, err := db.ExecuteSQL(ctx, stmt, nil)
			if err != nil {
				return fmt.Errorf("failed to execute statement %d: %w", i+1, err)
			}
			affected += cur.RowsAffected()
			if !e.quiet && len(cur.Columns()) > 0 {
				if err := p.Rows(cur.Columns(), cur.FetchAll()); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Success("%d statements, %d rows affected in %s", len(stmts), affected, time.Since(start).Round(time.Millisecond))
	return nil
}

func printStats(p *ui.Printer, stats []telemetry.KindStats) error {
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{
			s.Kind,
			ui.Cell(s.Count),
			ui.Cell(s.Errors),
			s.Total.String(),
			s.Average().String(),
			s.Max.String(),
		}
	}
	return p.Table([]string{"kind", "count", "errors", "total", "avg", "max"}, rows)
}

// SplitStatements splits a script on semicolons outside quotes. Comment
// lines starting with -- or # are dropped, and so are empty statements.
func SplitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		if quote == 0 {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "#") {
				continue
			}
		}
		escaped := false
		for _, r := range line {
			switch {
			case escaped:
				escaped = false
			case quote != 0 && r == '\\':
				escaped = true
			case quote != 0 && r == quote:
				quote = 0
			case quote == 0 && (r == '\'' || r == '"' || r == '`'):
				quote = r
			case quote == 0 && r == ';':
				flush()
				continue
			}
			cur.WriteRune(r)
		}
		cur.WriteByte('\n')
	}
	flush()
	return stmts
}
