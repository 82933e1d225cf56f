package av1level

import (
	"strings"

	"github.com/blang/semver"
)

const (
	AppName = "go-av1level"
	AppURL  = "https://github.com/autobrr/go-av1level"
)

var AppVersion = "dev"

func SetAppVersion(version string) {
	if version != "" {
		AppVersion = version
	}
}

// FormatVersion renders version as vMAJOR.MINOR.PATCH when it parses as
// semver and returns it unchanged otherwise.
func FormatVersion(version string) string {
	v, err := semver.ParseTolerant(strings.TrimSpace(version))
	if err != nil {
		return version
	}
	return "v" + v.String()
}
