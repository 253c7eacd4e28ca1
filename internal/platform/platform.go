// Package platform answers the host's platform-version and permission
// queries. Pure pass-through, no algorithmic content.
package platform

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

// Version returns a human-readable platform description, preferring the
// os-release pretty name when available.
func Version() string {
	if name := osReleasePrettyName("/etc/os-release"); name != "" {
		return runtime.GOOS + " " + name
	}
	return runtime.GOOS + "/" + runtime.GOARCH
}

// CheckPermission reports whether the named capability is available.
// Desktop Linux gates neither notifications nor background execution, so
// known capabilities are granted; unknown names are denied.
func CheckPermission(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "notification", "notifications", "background", "tray", "storage":
		return true
	default:
		return false
	}
}

func osReleasePrettyName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}
