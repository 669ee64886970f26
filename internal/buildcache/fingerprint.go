package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/fleetbuild/fleet/internal/changeanalyzer"
)

// ToolVersion is the scheduler's own version tag, mixed into every
// fingerprint so a fleet upgrade invalidates prior cache entries whose
// semantics it may have changed.
var ToolVersion = "dev"

// Fingerprint computes the stable hex string derived from the command
// string, the sorted file-hash map, the tool-version tag, and the project's
// configuration tag (spec §3). Equal fingerprints imply interchangeable
// outputs.
func Fingerprint(command string, files changeanalyzer.FileHashMap, configTag string) string {
	h := sha256.New()

	h.Write([]byte("command:"))
	h.Write([]byte(command))
	h.Write([]byte{0})

	h.Write([]byte("tool:"))
	h.Write([]byte(ToolVersion))
	h.Write([]byte{0})

	h.Write([]byte("config:"))
	h.Write([]byte(configTag))
	h.Write([]byte{0})

	for _, f := range files.Files {
		h.Write([]byte(f.Path))
		h.Write([]byte{'='})
		h.Write([]byte(f.Hash))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// sanitizeFingerprint is defensive: fingerprints are hex already, but the
// cache uses them directly as file names, so guard against any stray path
// separator a future fingerprint source might introduce.
func sanitizeFingerprint(fp string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.':
			return '_'
		default:
			return r
		}
	}, fp)
}
