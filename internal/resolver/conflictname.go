package resolver

import (
	"encoding/base32"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

var conflictPattern = regexp.MustCompile(`\.sync-conflict-\d{8}-\d{6}-[0-9A-Z]{7}$`)

// ConflictName builds the "basename.sync-conflict-YYYYMMDD-HHMMSS-
// XXXXXXX.ext" sibling name for name, stamped at when and attributed to
// winner. If name already carries a conflict suffix, that suffix is
// stripped first so conflict names never nest.
func ConflictName(name string, winner protocol.DeviceID, when time.Time) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = stripExistingConflictSuffix(base)

	tag := base32.StdEncoding.EncodeToString(winner[:])
	if len(tag) > 7 {
		tag = tag[:7]
	}
	return base + ".sync-conflict-" + when.UTC().Format("20060102-150405") + "-" + tag + ext
}

func stripExistingConflictSuffix(base string) string {
	if loc := conflictPattern.FindStringIndex(base); loc != nil {
		return base[:loc[0]]
	}
	return base
}
