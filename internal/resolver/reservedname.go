package resolver

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// windowsReservedBasenames are the device names Windows reserves
// regardless of extension (CON.txt is just as forbidden as CON).
var windowsReservedBasenames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// violatesReservedName reports whether f.Name cannot be materialized on
// the current platform: Windows device names and NUL/reserved
// characters in any path segment, or (Windows only) a symlink that
// isn't itself a deletion.
func violatesReservedName(f protocol.FileInfo) bool {
	for _, seg := range strings.Split(filepath.ToSlash(f.Name), "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		if strings.ContainsRune(seg, 0) {
			return true
		}
		if runtime.GOOS == "windows" {
			if strings.ContainsAny(seg, "<>:\"|?*") {
				return true
			}
			base := seg
			if i := strings.IndexByte(base, '.'); i >= 0 {
				base = base[:i]
			}
			if windowsReservedBasenames[strings.ToUpper(base)] {
				return true
			}
		}
	}
	if runtime.GOOS == "windows" && f.IsSymlink() && !f.Deleted {
		return true
	}
	return false
}
