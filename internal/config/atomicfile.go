package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v to indented JSON and writes it to path via a temp file in
// the same directory followed by a rename, so readers never observe a half-written
// file. The teacher's config writer (write.go) writes in place; spec.md §5/§9 requires
// atomic durability for the persisted caches, so this is a deliberate addition rather
// than a reuse of that pattern as-is.
func WriteJSONAtomic(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// ReadJSON reads and unmarshals a JSON file at path into v. Returns os.IsNotExist
// errors unchanged so callers can distinguish "no file yet" from a parse failure.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
