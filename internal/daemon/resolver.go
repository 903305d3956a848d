package daemon

import (
	"log"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Resinat/dohswitch/internal/endpoint"
)

// NameLookup maps an endpoint key to a registered provider name.
type NameLookup interface {
	NameFor(key endpoint.Key) (string, bool)
}

// Resolver infers the active endpoint from the unit file. The result is
// cached until the unit file or a watched file changes, or Invalidate is
// called.
type Resolver struct {
	unit  *UnitFile
	names NameLookup

	mu     sync.Mutex
	cached *endpoint.Active

	watcher *fsnotify.Watcher
	watched map[string]struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewResolver creates a Resolver. names may be nil.
func NewResolver(unit *UnitFile, names NameLookup) *Resolver {
	return &Resolver{
		unit:    unit,
		names:   names,
		watched: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Resolve returns the active endpoint. A missing or unreadable unit file,
// or one without an upstream, yields endpoint.Unknown().
func (r *Resolver) Resolve() endpoint.Active {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return *r.cached
	}

	content, err := r.unit.Read()
	if err != nil {
		log.Printf("[daemon] %v", err)
		return endpoint.Unknown()
	}
	active := r.resolveContent(content)
	r.cached = &active
	return active
}

func (r *Resolver) resolveContent(content string) endpoint.Active {
	fullURL, ok := ParseUpstream(content)
	if !ok {
		return endpoint.Unknown()
	}
	key := endpoint.Normalize(fullURL)
	if r.names != nil {
		if name, ok := r.names.NameFor(key); ok {
			return endpoint.Active{Name: name, FullURL: fullURL, Key: key}
		}
	}
	return endpoint.Unregistered(fullURL)
}

// Invalidate drops the cached result.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

// Watch invalidates the cache whenever one of paths (or the unit file) is
// written, replaced, or removed. Parent directories are watched so atomic
// renames are seen.
func (r *Resolver) Watch(paths ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]struct{})
	for _, p := range append([]string{r.unit.Path}, paths...) {
		if p == "" {
			continue
		}
		clean := filepath.Clean(p)
		r.watched[clean] = struct{}{}
		dirs[filepath.Dir(clean)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return err
		}
	}
	r.watcher = w

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.watchLoop()
	}()
	return nil
}

func (r *Resolver) watchLoop() {
	for {
		select {
		case <-r.stopCh:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if _, hit := r.watched[filepath.Clean(ev.Name)]; hit {
				r.Invalidate()
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[daemon] watch error: %v", err)
		}
	}
}

// Close stops watching.
func (r *Resolver) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.stopCh)
	err := r.watcher.Close()
	r.wg.Wait()
	r.watcher = nil
	return err
}
