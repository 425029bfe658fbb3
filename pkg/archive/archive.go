// Package archive stores scores on disk in a directory per digit, so a
// value like 12.5 lands in nb_max/1/2/5/0/.../result.json.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Type names a score column.
type Type string

const (
	TypeMax Type = "nb_max"
	TypeMin Type = "nb_min"
)

const fileName = "result.json"

// Record is the content of one result.json.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Type      Type      `json:"type"`
	Input     string    `json:"input"`
	Path      string    `json:"path"`
}

// Archive is a digit hierarchy rooted at Dir.
type Archive struct {
	dir string
	now func() time.Time
}

// New returns an archive rooted at dir.
func New(dir string) *Archive {
	return &Archive{dir: dir, now: time.Now}
}

// Dir returns the archive root.
func (a *Archive) Dir() string { return a.dir }

// ValuePath converts value to its relative directory. The value is
// formatted with ten decimals, the point is dropped and a minus sign
// becomes an underscore.
func ValuePath(value float64) string {
	s := strconv.FormatFloat(value, 'f', 10, 64)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "_")

	parts := make([]string, 0, len(s))
	for _, ch := range s {
		parts = append(parts, string(ch))
	}
	return filepath.Join(parts...)
}

// Save writes a record for value and returns the file path. An existing
// record at the same path is replaced.
func (a *Archive) Save(value float64, typ Type, input string) (string, error) {
	if typ != TypeMax && typ != TypeMin {
		return "", fmt.Errorf("unknown archive type %q", typ)
	}

	dir := filepath.Join(a.dir, string(typ), ValuePath(value))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)
	rec := Record{
		Timestamp: a.now().UTC(),
		Value:     value,
		Type:      typ,
		Input:     input,
		Path:      path,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal archive record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive record %s: %w", path, err)
	}
	return path, nil
}

// List returns every record of typ, newest first. A missing tree yields
// no records.
func (a *Archive) List(typ Type) ([]Record, error) {
	root := filepath.Join(a.dir, string(typ))

	var out []Record
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || d.Name() != fileName {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk archive %s: %w", root, err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// All returns the MAX and MIN records together, newest first.
func (a *Archive) All() ([]Record, error) {
	maxes, err := a.List(TypeMax)
	if err != nil {
		return nil, err
	}
	mins, err := a.List(TypeMin)
	if err != nil {
		return nil, err
	}

	out := append(maxes, mins...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}
