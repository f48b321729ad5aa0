// Package version reports build information of the porm command.
package version

import (
	"fmt"
	"runtime"

	"github.com/satishbabariya/porm-go/database/api/mysql"
)

// Set with -ldflags "-X github.com/satishbabariya/porm-go/cli/internal/version.Version=..."
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info holds version information.
type Info struct {
	Version          string
	BuildDate        string
	GitCommit        string
	GoVersion        string
	Platform         string
	MinServerVersion string
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:          Version,
		BuildDate:        BuildDate,
		GitCommit:        GitCommit,
		GoVersion:        runtime.Version(),
		Platform:         fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		MinServerVersion: mysql.MinServerVersion,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("porm version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns every field, one per line.
func (i Info) FullString() string {
	return fmt.Sprintf(`porm version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s
MySQL: >= %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion, i.MinServerVersion)
}
