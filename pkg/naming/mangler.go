package naming

import (
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/fernhill/rookery/pkg/types"
)

// MaxDirNameLength is the hard cap on a mangled directory name.
const MaxDirNameLength = 32

// forbiddenInItemName are characters a recovered business name may
// never contain.
const forbiddenInItemName = `/?#[]\`

// reservedNames are directory names that portable filesystems reject
// or mistreat. Comparison is case-insensitive.
var reservedNames = map[string]bool{
	".": true, "..": true,
	"aux": true, "con": true, "nul": true, "prn": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

// Mangler bridges business names and filesystem-safe directory names.
// Every implementation must be deterministic and stable across restarts.
type Mangler interface {
	// ItemName returns the stored business name if present on the child.
	ItemName(g types.Group, c types.Child) (string, bool)
	// DirName returns the mangled directory name for the child, or
	// false when the child carries no business name yet.
	DirName(g types.Group, c types.Child) (string, bool)
	// ItemNameFromLegacy infers a business name from a pre-existing
	// directory that has no stored metadata. The result is never empty,
	// ".", ".." or anything containing one of / ? # [ ] \.
	ItemNameFromLegacy(g types.Group, legacyDir string) string
	// DirNameFromLegacy maps a legacy directory to its mangled form.
	DirNameFromLegacy(g types.Group, legacyDir string) string
}

// Default is the standard mangler.
type Default struct{}

// ItemName returns the business name stored on the child.
func (Default) ItemName(_ types.Group, c types.Child) (string, bool) {
	name := c.Name()
	return name, name != ""
}

// DirName mangles the child's business name.
func (Default) DirName(_ types.Group, c types.Child) (string, bool) {
	name := c.Name()
	if name == "" {
		return "", false
	}
	return Mangle(name), true
}

// ItemNameFromLegacy recovers a usable business name from a legacy
// directory name.
func (Default) ItemNameFromLegacy(_ types.Group, legacyDir string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenInItemName, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(legacyDir))
	if name == "" || name == "." || name == ".." {
		return "unnamed-" + shortHash(legacyDir)
	}
	return name
}

// DirNameFromLegacy mangles the inferred business name.
func (d Default) DirNameFromLegacy(g types.Group, legacyDir string) string {
	return Mangle(d.ItemNameFromLegacy(g, legacyDir))
}

// Legacy is the degenerate mangler: identity on every operation, for
// trees created before directory mangling existed.
type Legacy struct{}

func (Legacy) ItemName(_ types.Group, c types.Child) (string, bool) {
	name := c.Name()
	return name, name != ""
}

func (Legacy) DirName(_ types.Group, c types.Child) (string, bool) {
	name := c.Name()
	return name, name != ""
}

func (Legacy) ItemNameFromLegacy(_ types.Group, legacyDir string) string {
	return legacyDir
}

func (Legacy) DirNameFromLegacy(_ types.Group, legacyDir string) string {
	return legacyDir
}

// RecordLegacyName attaches the inferred business name to the child
// without persisting it. The caller holds a bulk-change guard for the
// duration, so no cascading save fires.
func RecordLegacyName(m Mangler, g types.Group, c types.Child, legacyDir string) {
	c.SetName(m.ItemNameFromLegacy(g, legacyDir))
}

// Mangle deterministically maps a business name to a directory name
// drawn from the portable subset A-Za-z0-9_.- with at most 32
// characters. The mapping is insensitive to NFC/NFD normalization and
// never yields a reserved name.
func Mangle(name string) string {
	n := norm.NFC.String(name)

	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(n) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
			}
			lastDash = true
		}
	}

	s := strings.Trim(b.String(), "-.")
	if s == "" || reservedNames[s] {
		return truncate(s, MaxDirNameLength-9) + "-" + shortHash(name)
	}
	if len(s) > MaxDirNameLength {
		return truncate(s, MaxDirNameLength-9) + "-" + shortHash(name)
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) > max {
		s = s[:max]
	}
	s = strings.Trim(s, "-.")
	if s == "" {
		s = "x"
	}
	return s
}

func shortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(norm.NFC.String(s)))
	return fmt.Sprintf("%08x", h.Sum32())
}
