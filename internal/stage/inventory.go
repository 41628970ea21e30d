package stage

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
)

// DirCount summarises the files a pipeline directory holds.
type DirCount struct {
	Name   string `json:"name"`
	Dir    string `json:"dir"`
	Exists bool   `json:"exists"`
	Files  int    `json:"files"`
	// Newest is the latest modification time among the counted files.
	Newest time.Time `json:"newest,omitzero"`
}

// CountFiles counts the files in dir that pass filter. A missing directory
// is reported with Exists false rather than as an error.
func CountFiles(fs afero.Fs, name, dir string, filter ExtensionFilter) (DirCount, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	count := DirCount{Name: name, Dir: dir}
	info, err := fs.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return count, nil
	case err != nil:
		return count, errors.Wrapf(err, "stat %s", dir)
	case !info.IsDir():
		return count, errors.Newf("%s is not a directory", dir)
	}
	count.Exists = true

	files, err := PendingInput(fs, dir, filter)
	if err != nil {
		return count, err
	}
	count.Files = len(files)
	for _, path := range files {
		if fi, err := fs.Stat(path); err == nil && fi.ModTime().After(count.Newest) {
			count.Newest = fi.ModTime()
		}
	}
	return count, nil
}
