package config

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

var (
	tableHeader     = regexp.MustCompile(`^\s*\[`)
	schedulerHeader = regexp.MustCompile(`^\s*\[\s*scheduler\s*\]\s*(#.*)?$`)
	runsPerDayLine  = regexp.MustCompile(`^(\s*runs_per_day\s*=\s*)[^#]*?(\s*#.*)?$`)
)

// SetRunsPerDay rewrites scheduler.runs_per_day in the config file at path.
// Only that line changes, so comments and key order survive; the file is
// created when missing. A running scheduler keeps its interval until it is
// restarted.
func SetRunsPerDay(path string, runsPerDay int) error {
	if err := validateRunsPerDay(runsPerDay); err != nil {
		return err
	}
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(expanded)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "read config")
	}
	edited := replaceRunsPerDay(data, runsPerDay)
	if !hasRunsPerDay(edited, runsPerDay) {
		// Layouts the line editor cannot place the key in (inline or
		// dotted scheduler tables) are re-encoded whole.
		if edited, err = reencodeRunsPerDay(data, runsPerDay); err != nil {
			return errors.Wrapf(err, "update config %s", expanded)
		}
	}
	return writeFileAtomic(expanded, edited)
}

// replaceRunsPerDay edits the runs_per_day line of the [scheduler] table,
// inserting it under the header or appending the table when absent.
func replaceRunsPerDay(data []byte, runs int) []byte {
	value := strconv.Itoa(runs)
	lines := bytes.Split(data, []byte("\n"))
	header := -1
	for i, line := range lines {
		switch {
		case schedulerHeader.Match(line):
			header = i
		case tableHeader.Match(line):
			if header >= 0 {
				return insertLine(lines, header+1, "runs_per_day = "+value)
			}
		case header >= 0 && runsPerDayLine.Match(line):
			lines[i] = runsPerDayLine.ReplaceAll(line, []byte("${1}"+value+"${2}"))
			return bytes.Join(lines, []byte("\n"))
		}
	}
	if header >= 0 {
		return insertLine(lines, header+1, "runs_per_day = "+value)
	}
	out := bytes.TrimRight(data, "\n")
	if len(out) > 0 {
		out = append(out, "\n\n"...)
	}
	return append(out, "[scheduler]\nruns_per_day = "+value+"\n"...)
}

func insertLine(lines [][]byte, at int, line string) []byte {
	lines = append(lines[:at], append([][]byte{[]byte(line)}, lines[at:]...)...)
	return bytes.Join(lines, []byte("\n"))
}

func hasRunsPerDay(data []byte, runs int) bool {
	var doc struct {
		Scheduler struct {
			RunsPerDay *int `toml:"runs_per_day"`
		} `toml:"scheduler"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return doc.Scheduler.RunsPerDay != nil && *doc.Scheduler.RunsPerDay == runs
}

func reencodeRunsPerDay(data []byte, runs int) ([]byte, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	section, _ := doc["scheduler"].(map[string]any)
	if section == nil {
		section = map[string]any{}
	}
	section["runs_per_day"] = int64(runs)
	doc["scheduler"] = section
	encoded, err := toml.Marshal(doc)
	return encoded, errors.Wrap(err, "encode config")
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	tmp, err := os.CreateTemp(dir, ".diarist-config-*")
	if err != nil {
		return errors.Wrap(err, "create temp config")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "write temp config")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp config")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "chmod temp config")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "replace config")
	}
	return nil
}
