package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/facebookgo/atomicfile"
	"gopkg.in/yaml.v3"

	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/state"
)

// Registry is the provider list persisted in a JSON or YAML file. The
// format follows the file extension. All mutations rewrite the file
// atomically.
type Registry struct {
	path string

	mu        sync.RWMutex
	providers []Provider
	onChange  func()
}

// Open loads the registry at path, creating it with Defaults when missing.
// A file with invalid content is left untouched and Defaults are served.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}
	list, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		list = append([]Provider(nil), Defaults...)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("registry: create dir: %w", err)
		}
		if err := writeFile(path, list); err != nil {
			return nil, err
		}
		log.Printf("[registry] created %s with %d default providers", path, len(list))
	case err != nil:
		log.Printf("[registry] %v; serving defaults", err)
		list = append([]Provider(nil), Defaults...)
	}
	r.providers = list
	return r, nil
}

// Path returns the registry file.
func (r *Registry) Path() string { return r.path }

// BackupPath returns where Backup writes.
func (r *Registry) BackupPath() string { return r.path + ".backup" }

// OnChange registers fn to run after every successful mutation.
func (r *Registry) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// List returns all providers in file order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.providers))
	for i, p := range r.providers {
		out[i] = entryOf(p)
	}
	return out
}

// Get returns the provider whose ID is id.
func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexByID(id); i >= 0 {
		return entryOf(r.providers[i]), nil
	}
	return Entry{}, state.ErrNotFound
}

// FindByURL matches on the normalized URL.
func (r *Registry) FindByURL(rawURL string) (Entry, bool) {
	key := endpoint.Normalize(rawURL)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexByKey(key); i >= 0 {
		return entryOf(r.providers[i]), true
	}
	return Entry{}, false
}

// FindByName matches case-insensitively on the provider name.
func (r *Registry) FindByName(name string) (Entry, bool) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		if strings.EqualFold(p.Name, name) {
			return entryOf(p), true
		}
	}
	return Entry{}, false
}

// Resolve accepts an ID, a name, or a URL.
func (r *Registry) Resolve(ref string) (Entry, error) {
	if e, err := r.Get(ref); err == nil {
		return e, nil
	}
	if e, ok := r.FindByName(ref); ok {
		return e, nil
	}
	if e, ok := r.FindByURL(ref); ok {
		return e, nil
	}
	return Entry{}, state.ErrNotFound
}

// NameFor returns the registered name of key.
func (r *Registry) NameFor(key endpoint.Key) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexByKey(key); i >= 0 {
		return r.providers[i].Name, true
	}
	return "", false
}

// Add appends a provider. Its normalized URL must be unique.
func (r *Registry) Add(name, rawURL string) (Entry, error) {
	name, err := cleanName(name)
	if err != nil {
		return Entry{}, err
	}
	u, err := cleanURL(rawURL)
	if err != nil {
		return Entry{}, err
	}
	p := Provider{Name: name, URL: u}

	r.mu.Lock()
	if r.indexByKey(p.Key()) >= 0 {
		r.mu.Unlock()
		return Entry{}, state.ErrConflict
	}
	next := append(append([]Provider(nil), r.providers...), p)
	if err := r.commitLocked(next); err != nil {
		r.mu.Unlock()
		return Entry{}, err
	}
	r.mu.Unlock()
	r.changed()
	return entryOf(p), nil
}

// Update changes the name and/or URL of a provider. Nil fields are kept.
// Changing the URL of a default provider is refused.
func (r *Registry) Update(id string, name, rawURL *string) (Entry, error) {
	r.mu.Lock()
	i := r.indexByID(id)
	if i < 0 {
		r.mu.Unlock()
		return Entry{}, state.ErrNotFound
	}
	p := r.providers[i]
	if name != nil {
		n, err := cleanName(*name)
		if err != nil {
			r.mu.Unlock()
			return Entry{}, err
		}
		p.Name = n
	}
	if rawURL != nil {
		u, err := cleanURL(*rawURL)
		if err != nil {
			r.mu.Unlock()
			return Entry{}, err
		}
		newKey := endpoint.Normalize(u)
		if newKey != p.Key() {
			if IsDefault(p.Key()) {
				r.mu.Unlock()
				return Entry{}, ErrProtected
			}
			if r.indexByKey(newKey) >= 0 {
				r.mu.Unlock()
				return Entry{}, state.ErrConflict
			}
		}
		p.URL = u
	}
	next := append([]Provider(nil), r.providers...)
	next[i] = p
	if err := r.commitLocked(next); err != nil {
		r.mu.Unlock()
		return Entry{}, err
	}
	r.mu.Unlock()
	r.changed()
	return entryOf(p), nil
}

// Delete removes a provider. Defaults are protected.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	i := r.indexByID(id)
	if i < 0 {
		r.mu.Unlock()
		return state.ErrNotFound
	}
	if IsDefault(r.providers[i].Key()) {
		r.mu.Unlock()
		return ErrProtected
	}
	next := append(append([]Provider(nil), r.providers[:i]...), r.providers[i+1:]...)
	if err := r.commitLocked(next); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()
	r.changed()
	return nil
}

// Backup writes the current list to BackupPath and returns that path.
func (r *Registry) Backup() (string, error) {
	r.mu.RLock()
	list := append([]Provider(nil), r.providers...)
	r.mu.RUnlock()
	if err := writeFile(r.BackupPath(), list); err != nil {
		return "", err
	}
	return r.BackupPath(), nil
}

// Restore replaces the registry with the content of BackupPath.
func (r *Registry) Restore() ([]Entry, error) {
	list, err := readFile(r.BackupPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, state.ErrNotFound
		}
		return nil, err
	}
	r.mu.Lock()
	if err := r.commitLocked(list); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()
	r.changed()
	log.Printf("[registry] restored %d providers from %s", len(list), r.BackupPath())
	return r.List(), nil
}

func (r *Registry) commitLocked(next []Provider) error {
	if err := writeFile(r.path, next); err != nil {
		return err
	}
	r.providers = next
	return nil
}

func (r *Registry) changed() {
	r.mu.RLock()
	fn := r.onChange
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (r *Registry) indexByID(id string) int {
	for i, p := range r.providers {
		if endpoint.ID(p.Key()) == id {
			return i
		}
	}
	return -1
}

func (r *Registry) indexByKey(key endpoint.Key) int {
	for i, p := range r.providers {
		if p.Key() == key {
			return i
		}
	}
	return -1
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// formatPath strips a trailing .backup so backups share the live format.
func formatPath(path string) string {
	return strings.TrimSuffix(path, ".backup")
}

func readFile(path string) ([]Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []Provider
	if isYAML(formatPath(path)) {
		err = yaml.Unmarshal(data, &list)
	} else {
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}
	if err := validate(list); err != nil {
		return nil, fmt.Errorf("registry: %s: %w", path, err)
	}
	return list, nil
}

func writeFile(path string, list []Provider) error {
	if list == nil {
		list = []Provider{}
	}
	var (
		data []byte
		err  error
	)
	if isYAML(formatPath(path)) {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(list); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	} else {
		data, err = json.MarshalIndent(list, "", "    ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}

	f, err := atomicfile.New(path, 0o644)
	if err != nil {
		return fmt.Errorf("registry: open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Abort()
		return fmt.Errorf("registry: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("registry: commit %s: %w", path, err)
	}
	return nil
}
