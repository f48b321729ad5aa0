// Package ui renders porm command output.
package ui

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/spf13/cast"

	"github.com/satishbabariya/porm-go/database/api"
)

var (
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	SecondaryColor = lipgloss.Color("#6C757D")

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

// Printer writes styled output. Errors and warnings go to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a printer over out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

func width() int {
	if w := pterm.GetTerminalWidth(); w > 0 {
		return min(w, 100)
	}
	return 80
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning line.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.Err, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Info prints an informational line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// Section prints an underlined section title.
func (p *Printer) Section(title string) {
	section := lipgloss.NewStyle().
		Width(width()).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(title)
	fmt.Fprintln(p.Out, section)
}

// Table prints rows under headers.
func (p *Printer) Table(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(p.Out, out)
	return nil
}

// Rows prints query results in column order. nil values print as NULL.
func (p *Printer) Rows(columns []string, rows [][]any) error {
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			cells[i][j] = Cell(v)
		}
	}
	return p.Table(columns, cells)
}

// Records prints dict rows, one "key: value" block per record.
func (p *Printer) Records(records []api.Record) {
	key := color.New(color.FgCyan)
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(p.Out)
		}
		for _, k := range slices.Sorted(maps.Keys(rec)) {
			key.Fprintf(p.Out, "%s", k)
			fmt.Fprintf(p.Out, ": %s\n", Cell(rec[k]))
		}
	}
}

// Params prints bound parameters sorted by name.
func (p *Printer) Params(params map[string]any) {
	name := color.New(color.FgYellow)
	for _, k := range slices.Sorted(maps.Keys(params)) {
		name.Fprintf(p.Out, "  %s", k)
		fmt.Fprintf(p.Out, " = %#v\n", params[k])
	}
}

// Code prints a statement in a bordered block labelled with lang.
func (p *Printer) Code(code, lang string) {
	if lang != "" {
		fmt.Fprintln(p.Out, SecondaryStyle.Render(" "+lang+" "))
	}
	block := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(SecondaryColor).
		Padding(0, 1).
		Render(code)
	fmt.Fprintln(p.Out, block)
}

// Markdown renders markdown content for the terminal.
func (p *Printer) Markdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width()),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(content)
	if err != nil {
		return err
	}
	fmt.Fprint(p.Out, out)
	return nil
}

// Cell renders one value for a table cell.
func Cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
