package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	prev := Version
	Version = "1.2.3"
	t.Cleanup(func() { Version = prev })

	info := Get()
	assert.Contains(t, info.String(), "porm version 1.2.3 (")
	assert.Contains(t, info.FullString(), "Git Commit: unknown")
	assert.Contains(t, info.FullString(), "MySQL: >= 5.5.0")
}
