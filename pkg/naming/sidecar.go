package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SidecarFile is the advisory file holding a child's business name in
// UTF-8 alongside its configuration. The authoritative source is the
// child's stored configuration; the sidecar exists for administrators
// and for cold loads where the configuration lacks the name.
const SidecarFile = "name-utf8.txt"

// ReadSidecar returns the business name stored in dir's sidecar file.
// Leading and trailing whitespace is trimmed; an empty or missing file
// reads as absent.
func ReadSidecar(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, SidecarFile))
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff"))
	if name == "" {
		return "", false
	}
	return name, true
}

// WriteSidecar writes the business name to dir's sidecar file. The
// write is atomic (write-then-rename) and emits exactly one line with
// no byte-order mark.
func WriteSidecar(dir, name string) error {
	tmp := filepath.Join(dir, SidecarFile+".tmp")
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write name sidecar: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, SidecarFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to install name sidecar: %w", err)
	}
	return nil
}
