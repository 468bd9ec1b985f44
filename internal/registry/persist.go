package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	pluginsFile      = "plugins.json"
	moduleStatusFile = "module-status.json"
	errorLogFile     = "error-log.json"
)

// pluginsDocument, moduleStatusDocument, and errorLogDocument are the
// on-disk envelopes for the three persisted files: each carries the
// snapshot alongside the instant it was written, since the three files
// are not written atomically together. The two keyed snapshots are
// serialized as [agentId, value] entry pairs, the persisted state
// layout readers of these files expect.
type pluginsDocument struct {
	Timestamp time.Time          `json:"timestamp"`
	Plugins   entryPairs[Plugin] `json:"plugins"`
}

type moduleStatusDocument struct {
	Timestamp    time.Time                `json:"timestamp"`
	ModuleStatus entryPairs[ModuleStatus] `json:"moduleStatus"`
}

type errorLogDocument struct {
	Timestamp time.Time       `json:"timestamp"`
	Errors    []ErrorLogEntry `json:"errors"`
}

// entryPairs is a string-keyed map that marshals as [[key, value], ...]
// pairs, sorted by key for deterministic output.
type entryPairs[V any] map[string]V

func (m entryPairs[V]) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]any, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]any{k, m[k]})
	}
	return json.Marshal(pairs)
}

func (m *entryPairs[V]) UnmarshalJSON(data []byte) error {
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}

	out := make(map[string]V, len(pairs))
	for _, pair := range pairs {
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return fmt.Errorf("decoding entry key: %w", err)
		}
		var value V
		if err := json.Unmarshal(pair[1], &value); err != nil {
			return fmt.Errorf("decoding entry %q: %w", key, err)
		}
		out[key] = value
	}
	*m = out
	return nil
}

func (s *Store) persistPlugins(plugins []Plugin) {
	byID := make(entryPairs[Plugin], len(plugins))
	for _, p := range plugins {
		byID[p.Agent.ID] = p
	}
	doc := pluginsDocument{Timestamp: s.clock.Now(), Plugins: byID}
	s.writeJSON(pluginsFile, doc)
}

func (s *Store) persistModuleStatus(moduleStatus map[string]ModuleStatus) {
	doc := moduleStatusDocument{Timestamp: s.clock.Now(), ModuleStatus: entryPairs[ModuleStatus](moduleStatus)}
	s.writeJSON(moduleStatusFile, doc)
}

func (s *Store) persistErrorLog(errorLog []ErrorLogEntry) {
	doc := errorLogDocument{Timestamp: s.clock.Now(), Errors: errorLog}
	s.writeJSON(errorLogFile, doc)
}

// writeJSON marshals v and writes it to name under the store's
// directory via write-temp-then-rename, logging (rather than
// propagating) failures since persistence is best-effort.
func (s *Store) writeJSON(name string, v any) {
	if s.dir == "" {
		return
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("creating registry directory", "error", err, "dir", s.dir)
		return
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("marshaling registry state", "error", err, "file", name)
		return
	}

	path := filepath.Join(s.dir, name)
	if err := atomicWriteBytes(path, data); err != nil {
		s.logger.Error("persisting registry state", "error", err, "file", name)
	}
}

func atomicWriteBytes(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func loadPlugins(dir string) (map[string]Plugin, error) {
	out := make(map[string]Plugin)
	data, ok, err := readIfExists(filepath.Join(dir, pluginsFile))
	if err != nil || !ok {
		return out, err
	}
	var doc pluginsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", pluginsFile, err)
	}
	if doc.Plugins != nil {
		out = map[string]Plugin(doc.Plugins)
	}
	return out, nil
}

func loadModuleStatus(dir string) (map[string]ModuleStatus, error) {
	out := make(map[string]ModuleStatus)
	data, ok, err := readIfExists(filepath.Join(dir, moduleStatusFile))
	if err != nil || !ok {
		return out, err
	}
	var doc moduleStatusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", moduleStatusFile, err)
	}
	if doc.ModuleStatus != nil {
		out = map[string]ModuleStatus(doc.ModuleStatus)
	}
	return out, nil
}

func loadErrorLog(dir string) ([]ErrorLogEntry, error) {
	data, ok, err := readIfExists(filepath.Join(dir, errorLogFile))
	if err != nil || !ok {
		return nil, err
	}
	var doc errorLogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", errorLogFile, err)
	}
	return doc.Errors, nil
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, true, nil
}
