// FILE: dynconf/source_file.go
package dynconf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileSourceOptions configures a FileSource.
type FileSourceOptions struct {
	// Format forces a parser: "toml", "json", "yaml", or "auto" (default)
	// to detect from the file extension with a content-sniff fallback.
	Format string

	// SearchPaths are directories tried in order when the file is not at
	// its literal path. The literal path is always tried first.
	SearchPaths []string

	// Watch enables fsnotify-based change detection. Without it (or when
	// the notify watcher cannot be established) changes are detected by
	// comparing modification time and size on each refresh cycle.
	Watch bool
}

// DefaultFileSourceOptions returns the standard file source configuration.
func DefaultFileSourceOptions() FileSourceOptions {
	return FileSourceOptions{Format: "auto", Watch: true}
}

// FileSource reads one configuration file (TOML, JSON, or YAML) as a
// nested snapshot. Change detection prefers fsnotify events and falls back
// to stat polling, so refresh cycles skip the re-parse when nothing
// changed.
type FileSource struct {
	path string
	opts FileSourceOptions

	pending atomic.Bool // fsnotify event seen since last load

	mu       sync.Mutex
	resolved string // path the file was last found at
	lastMod  time.Time
	lastSize int64
	watcher  *fsnotify.Watcher
	loaded   bool
}

// NewFileSource creates a file source with default options.
func NewFileSource(path string) *FileSource {
	return NewFileSourceWithOptions(path, DefaultFileSourceOptions())
}

// NewFileSourceWithOptions creates a file source with explicit options.
func NewFileSourceWithOptions(path string, opts FileSourceOptions) *FileSource {
	if opts.Format == "" {
		opts.Format = "auto"
	}
	return &FileSource{path: path, opts: opts}
}

// Load reads and parses the file. A missing or unreadable file wraps
// ErrSourceUnavailable; unparseable content wraps ErrSourceFormat. The
// owning node retains the previous snapshot in both cases.
func (s *FileSource) Load(_ context.Context) (map[string]any, error) {
	path, info, err := s.findFile()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrSourceUnavailable, path, err)
	}

	format := s.opts.Format
	if format == "auto" {
		format = detectFileFormat(path)
		if format == "" {
			format = detectFormatFromContent(data)
		}
	}

	parsed := make(map[string]any)
	switch format {
	case "toml":
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("%w: parsing TOML file %s: %w", ErrSourceFormat, path, err)
		}
	case "json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber() // preserve number precision
		if err := decoder.Decode(&parsed); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON file %s: %w", ErrSourceFormat, path, err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML file %s: %w", ErrSourceFormat, path, err)
		}
	default:
		return nil, fmt.Errorf("%w: cannot determine format of %s", ErrSourceFormat, path)
	}

	s.mu.Lock()
	s.resolved = path
	s.lastMod = info.ModTime()
	s.lastSize = info.Size()
	s.loaded = true
	s.mu.Unlock()
	s.pending.Store(false)

	if s.opts.Watch {
		s.ensureWatcher(path)
	}

	return parsed, nil
}

// Changed reports whether the file was modified since the last load:
// a buffered fsnotify event, a stat mismatch, or a stat failure (the
// follow-up Load surfaces the real error and the stale policy applies).
func (s *FileSource) Changed() bool {
	if s.pending.Load() {
		return true
	}

	s.mu.Lock()
	path := s.resolved
	lastMod, lastSize, loaded := s.lastMod, s.lastSize, s.loaded
	s.mu.Unlock()

	if !loaded {
		return true
	}

	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(lastMod) || info.Size() != lastSize
}

// Close stops the fsnotify watcher, if one was started.
func (s *FileSource) Close() error {
	s.mu.Lock()
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		return watcher.Close()
	}
	return nil
}

// findFile locates the configuration file, trying the literal path first
// and then each search path directory.
func (s *FileSource) findFile() (string, os.FileInfo, error) {
	candidates := make([]string, 0, len(s.opts.SearchPaths)+1)
	candidates = append(candidates, s.path)
	base := filepath.Base(s.path)
	for _, dir := range s.opts.SearchPaths {
		candidates = append(candidates, filepath.Join(dir, base))
	}

	var firstErr error
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, info, nil
		}
		if err != nil && firstErr == nil && !errors.Is(err, os.ErrNotExist) {
			firstErr = err
		}
	}

	if firstErr != nil {
		return "", nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.path, firstErr)
	}
	return "", nil, fmt.Errorf("%w: file %s not found", ErrSourceUnavailable, s.path)
}

// ensureWatcher starts the fsnotify watcher for the resolved path. Watcher
// failures are silently absorbed: stat-based detection still works.
func (s *FileSource) ensureWatcher(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	// Watch the directory: editors and atomic renames replace the file
	// inode, which a direct file watch loses track of.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return
	}
	s.watcher = watcher

	name := filepath.Base(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					s.pending.Store(true)
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Keep watching; stat fallback covers missed events.
			}
		}
	}()
}

// detectFileFormat determines the parser from the file extension.
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return ""
	}
}

// detectFormatFromContent attempts detection by parsing. JSON is checked
// first (strictest), YAML before TOML because YAML is a JSON superset.
func detectFormatFromContent(data []byte) string {
	var jsonTest any
	if err := json.Unmarshal(data, &jsonTest); err == nil {
		return "json"
	}

	var tomlTest map[string]any
	if err := toml.Unmarshal(data, &tomlTest); err == nil {
		return "toml"
	}

	var yamlTest any
	if err := yaml.Unmarshal(data, &yamlTest); err == nil {
		return "yaml"
	}

	return ""
}
