package commands

import (
	"github.com/spf13/cobra"
)

const filtersHelp = "# Filter expressions\n\n" +
	"`--where` takes conditions joined with `AND`. Keywords are case-insensitive\n" +
	"and every field may appear once.\n\n" +
	"| expression | compiles to |\n" +
	"|---|---|\n" +
	"| `age = 18` | `age=%(fltr_age)s` |\n" +
	"| `age >= 18` | `age >= %(fltr_age)s` |\n" +
	"| `id IN (1, 2)` | `id IN (%(fltr_id0)s, %(fltr_id1)s)` |\n" +
	"| `id NOT IN (1)` | `id NOT IN (%(fltr_id0)s)` |\n" +
	"| `id IN ()` | `1<>1` |\n" +
	"| `name LIKE \"a%\"` | `name LIKE %(fltr_name)s` |\n" +
	"| `name LIKE ANY (\"a\", \"b\")` | `(name LIKE %(fltr_LKE_0_name)s OR name LIKE %(fltr_LKE_1_name)s)` |\n" +
	"| `age WITHIN [20, 40)` | `age>=%(fltr_age>=)s AND age<%(fltr_age<)s` |\n" +
	"| `age WITHIN (, 40]` | `age<=%(fltr_age<=)s` |\n" +
	"| `a.id = @b.id` | `a.id=b.id` |\n\n" +
	"Strings take single or double quotes. `@column` references another column\n" +
	"and is only allowed after `=`, which is what `--join` conditions use:\n\n" +
	"```\nporm filter -t PORM.UserInfo -j 'PORM.Role: PORM.UserInfo.userid = @PORM.Role.userid'\n```\n"

func newFiltersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "Describe the filter expression syntax",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printer(cmd).Markdown(filtersHelp)
		},
	}
}
