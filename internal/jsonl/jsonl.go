// Package jsonl dumps a Datastore to a JSON Lines file and loads it back.
// Each line is one record: {"kind":...,"key":...,"payload":{...}}.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mesh-intelligence/ndb/pkg/types"
)

// Record is one line of a dump.
type Record struct {
	Kind    string          `json:"kind"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}

// Export writes every record of store to path, ordered by kind and then
// key, and returns the number of records written. The file is replaced
// atomically.
func Export(store types.Datastore, path string) (int, error) {
	kinds, err := store.ListKinds()
	if err != nil {
		return 0, err
	}
	var lines []json.RawMessage
	for _, kind := range kinds {
		var keys []string
		for key, err := range store.ScanKeys(kind) {
			if err != nil {
				return 0, err
			}
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			payload, found, err := store.Get(kind, key)
			if err != nil {
				return 0, err
			}
			if !found {
				continue
			}
			if !json.Valid([]byte(payload)) {
				return 0, fmt.Errorf("record %s/%s: payload is not JSON", kind, key)
			}
			line, err := json.Marshal(Record{Kind: kind, Key: key, Payload: json.RawMessage(payload)})
			if err != nil {
				return 0, fmt.Errorf("encoding record %s/%s: %w", kind, key, err)
			}
			lines = append(lines, line)
		}
	}
	if err := writeJSONL(path, lines); err != nil {
		return 0, err
	}
	return len(lines), nil
}

// Import stores every record in the file at path. Blank lines are ignored;
// malformed lines and records without a kind or key are skipped and
// counted.
func Import(store types.Datastore, path string) (imported, skipped int, err error) {
	lines, skipped, err := readJSONL(path)
	if err != nil {
		return 0, 0, err
	}
	for _, line := range lines {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Kind == "" || rec.Key == "" || len(rec.Payload) == 0 {
			skipped++
			continue
		}
		if err := store.Set(rec.Kind, rec.Key, string(rec.Payload)); err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// readJSONL returns each non-empty, valid JSON line of path and the number
// of invalid lines it skipped.
func readJSONL(path string) ([]json.RawMessage, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var (
		records []json.RawMessage
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			skipped++
			continue
		}
		records = append(records, json.RawMessage(slices.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, skipped, nil
}

// writeJSONL atomically writes records to path using the temp-file, fsync,
// rename pattern.
func writeJSONL(path string, records []json.RawMessage) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
