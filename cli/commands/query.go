package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/porm-go/cli/internal/filterexpr"
	"github.com/satishbabariya/porm-go/database/api/mysql"
	"github.com/satishbabariya/porm-go/query/filter"
	"github.com/satishbabariya/porm-go/query/sqlgen"
)

type queryOptions struct {
	where   string
	orderBy string
	page    int
	size    int
	columns []string
	json    bool
}

// statement compiles the select for table.
func (q *queryOptions) statement(table string) (string, filter.Params, error) {
	terms, err := filterexpr.Parse(q.where)
	if err != nil {
		return "", nil, err
	}
	var fopts []filter.Option
	if q.orderBy != "" {
		fopts = append(fopts, filter.WithOrderBy(q.orderBy))
	}
	if q.page > 0 {
		fopts = append(fopts, filter.WithPage(q.page, q.size))
	}
	parsed, err := filter.Parse(terms, fopts...)
	if err != nil {
		return "", nil, err
	}
	return sqlgen.Select(q.columns, table, parsed.Filter()), parsed.Params(), nil
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	q := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Select rows from a table",
		Example: `  porm query PORM.UserInfo --where 'is_active = 1 AND username LIKE "a%"' --page 1 --size 20
  porm query PORM.UserInfo --columns userid,username --order-by "userid DESC" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, params, err := q.statement(args[0])
			if err != nil {
				return err
			}

			ctx, db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer shutdown(ctx, db)

			p := printer(cmd)
			if db.Config().CursorClass == mysql.CursorTuple && !q.json {
				columns, rows, err := db.QueryRows(ctx, stmt, map[string]any(params))
				if err != nil {
					return err
				}
				return p.Rows(columns, rows)
			}

			records, err := db.QueryMany(ctx, stmt, map[string]any(params))
			if err != nil {
				return err
			}
			if q.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			p.Records(records)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&q.where, "where", "w", "", "filter expression, see 'porm filters'")
	flags.StringVar(&q.orderBy, "order-by", "", "ORDER BY clause")
	flags.IntVar(&q.page, "page", 0, "1-indexed page, 0 returns every row")
	flags.IntVar(&q.size, "size", 10, "page size")
	flags.StringSliceVarP(&q.columns, "columns", "c", nil, "columns to select (default *)")
	flags.BoolVar(&q.json, "json", false, "print rows as JSON")
	return cmd
}
