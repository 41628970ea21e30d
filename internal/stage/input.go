package stage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// ExtensionFilter decides which files count as stage input.
type ExtensionFilter struct {
	Allow []string
	Deny  []string
}

// Match reports whether name passes the allow and deny lists. An empty allow
// list admits every extension not denied.
func (f ExtensionFilter) Match(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, deny := range f.Deny {
		if ext == deny {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	for _, allow := range f.Allow {
		if ext == allow {
			return true
		}
	}
	return false
}

// PendingInput lists regular files directly inside dir that pass filter,
// sorted by name. A missing directory means no pending input.
func PendingInput(fs afero.Fs, dir string, filter ExtensionFilter) ([]string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		if !filter.Match(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}
