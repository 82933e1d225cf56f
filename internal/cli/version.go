package cli

import (
	"fmt"
	"io"

	"github.com/autobrr/go-av1level/internal/av1level"
)

func SetVersion(version string) {
	av1level.SetAppVersion(version)
}

func Version(stdout io.Writer) {
	fmt.Fprintf(stdout, "%s, %s\n", av1level.AppName, av1level.FormatVersion(av1level.AppVersion))
}
