package commands

import (
	"strings"

	"github.com/spf13/cobra"

	porm "github.com/satishbabariya/porm-go"
	"github.com/satishbabariya/porm-go/cli/internal/filterexpr"
	"github.com/satishbabariya/porm-go/query/filter"
	"github.com/satishbabariya/porm-go/query/sqlgen"
)

type filterOptions struct {
	queryOptions
	table string
	joins []string
	bind  bool
}

// compile renders the select for the options without touching a server.
func (f *filterOptions) compile() (string, filter.Params, error) {
	const op = "commands.filter"
	terms, err := filterexpr.Parse(f.where)
	if err != nil {
		return "", nil, err
	}

	var fopts []filter.Option
	from := f.table
	if len(f.joins) > 0 {
		fopts = append(fopts, filter.WithTable(f.table))
	}
	if f.orderBy != "" {
		fopts = append(fopts, filter.WithOrderBy(f.orderBy))
	}
	if f.page > 0 {
		fopts = append(fopts, filter.WithPage(f.page, f.size))
	}
	parsed, err := filter.Parse(terms, fopts...)
	if err != nil {
		return "", nil, err
	}

	results := []filter.ParsedResult{parsed}
	for _, j := range f.joins {
		table, expr, ok := strings.Cut(j, ":")
		table = strings.TrimSpace(table)
		if !ok || table == "" {
			return "", nil, porm.NewError(porm.KindParam, op, "join %q is not table:expression", j)
		}
		jterms, err := filterexpr.Parse(expr)
		if err != nil {
			return "", nil, err
		}
		jparsed, err := filter.ParseJoin(jterms)
		if err != nil {
			return "", nil, err
		}
		from += sqlgen.JoinClause(table, jparsed.Filter())
		results = append(results, jparsed)
	}

	params, err := filter.MergeParams(results...)
	if err != nil {
		return "", nil, err
	}
	return sqlgen.Select(f.columns, from, parsed.Filter()), params, nil
}

func newFilterCommand() *cobra.Command {
	f := &filterOptions{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Compile a filter expression to SQL without connecting",
		Example: `  porm filter --table PORM.UserInfo --where 'age WITHIN [18, 65) AND userid IN (1, 2)'
  porm filter --table PORM.UserInfo --join 'PORM.Role: PORM.UserInfo.userid = @PORM.Role.userid' --bind`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, params, err := f.compile()
			if err != nil {
				return err
			}

			p := printer(cmd)
			p.Code(stmt, "sql")
			if len(params) > 0 {
				p.Section("params")
				p.Params(params)
			}
			if f.bind {
				q, err := sqlgen.Bind(stmt, map[string]any(params))
				if err != nil {
					return err
				}
				p.Section("bound")
				p.Code(q.SQL, "sql")
				for i, arg := range q.Args {
					p.Info("%d: %#v", i+1, arg)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.table, "table", "t", "", "table to select from")
	flags.StringVarP(&f.where, "where", "w", "", "filter expression, see 'porm filters'")
	flags.StringArrayVarP(&f.joins, "join", "j", nil, "joined table as table:expression, repeatable")
	flags.StringVar(&f.orderBy, "order-by", "", "ORDER BY clause")
	flags.IntVar(&f.page, "page", 0, "1-indexed page")
	flags.IntVar(&f.size, "size", 10, "page size")
	flags.StringSliceVarP(&f.columns, "columns", "c", nil, "columns to select (default *)")
	flags.BoolVar(&f.bind, "bind", false, "also print the driver form with ? placeholders")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
