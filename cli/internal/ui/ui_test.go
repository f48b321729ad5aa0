package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/porm-go/database/api"
)

func newTestPrinter(t *testing.T) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out, errOut bytes.Buffer
	return New(&out, &errOut), &out, &errOut
}

func TestCell(t *testing.T) {
	assert.Equal(t, "NULL", Cell(nil))
	assert.Equal(t, "ann", Cell([]byte("ann")))
	assert.Equal(t, "42", Cell(int64(42)))
	assert.Equal(t, "1.5", Cell(1.5))
	assert.Contains(t, Cell(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)), "2024-03-01")
}

func TestPrinterMessages(t *testing.T) {
	p, out, errOut := newTestPrinter(t)
	p.Success("connected to %s", "PORM")
	p.Info("server %s", "8.0.34")
	p.Warning("slow")
	p.Error("failed: %v", "boom")

	assert.Contains(t, out.String(), "connected to PORM")
	assert.Contains(t, out.String(), "server 8.0.34")
	assert.Contains(t, errOut.String(), "slow")
	assert.Contains(t, errOut.String(), "failed: boom")
	assert.NotContains(t, out.String(), "boom")
}

func TestPrinterRows(t *testing.T) {
	p, out, _ := newTestPrinter(t)
	require.NoError(t, p.Rows([]string{"userid", "username"}, [][]any{{int64(1), "ann"}, {int64(2), nil}}))

	s := out.String()
	assert.Contains(t, s, "userid")
	assert.Contains(t, s, "ann")
	assert.Contains(t, s, "NULL")
}

func TestPrinterRecordsAndParams(t *testing.T) {
	p, out, _ := newTestPrinter(t)
	p.Records([]api.Record{{"username": "ann", "userid": int64(1)}})
	assert.Equal(t, "userid: 1\nusername: ann\n", out.String())

	out.Reset()
	p.Params(map[string]any{"fltr_b": "x", "fltr_a": int64(1)})
	assert.Equal(t, "  fltr_a = 1\n  fltr_b = \"x\"\n", out.String())
}
