package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
)

const (
	fileSuffix    = ".json"
	tempPrefix    = ".tmp-"
	fileDirPerm   = 0o700
	fileValuePerm = 0o600
)

type fileState struct {
	value   string
	deleted bool
}

// File stores one file per key under dir. Writes land through a temp file and
// rename. With watching enabled, edits made by other processes in the same
// directory are reported to watchers.
type File struct {
	dir  string
	logg *logger.Logger

	mu     sync.Mutex
	known  map[string]fileState
	closed bool

	watch   watchers
	fsw     *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	closeMu sync.Once
}

func NewFile(dir string, watch bool, logg *logger.Logger) (*File, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if err := os.MkdirAll(dir, fileDirPerm); err != nil {
		return nil, fmt.Errorf("create storage dir %q: %w", dir, err)
	}

	f := &File{
		dir:    dir,
		logg:   logg,
		known:  make(map[string]fileState),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if !watch {
		close(f.doneCh)
		return f, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch storage dir %q: %w", dir, err)
	}
	f.fsw = fsw
	go f.run()
	return f, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+fileSuffix)
}

func keyFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, tempPrefix) || !strings.HasSuffix(base, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(base, fileSuffix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	if f.isClosed() {
		return "", false, ErrClosed
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return string(data), true, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	err := f.writeAtomic(key, value)
	if err == nil {
		f.known[key] = fileState{value: value}
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}

	f.watch.notify(Change{Key: key, Value: value})
	return nil
}

func (f *File) writeAtomic(key, value string) error {
	tmp, err := os.CreateTemp(f.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Chmod(fileValuePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %q: %w", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("rename %q: %w", key, err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	err := os.Remove(f.path(key))
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.mu.Unlock()
		return fmt.Errorf("remove %q: %w", key, err)
	}
	f.known[key] = fileState{deleted: true}
	f.mu.Unlock()

	if existed {
		f.watch.notify(Change{Key: key, Deleted: true})
	}
	return nil
}

func (f *File) Watch(fn func(Change)) func() {
	return f.watch.add(fn)
}

func (f *File) Ping(context.Context) error {
	if f.isClosed() {
		return ErrClosed
	}
	if _, err := os.Stat(f.dir); err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	return nil
}

func (f *File) Close() error {
	var err error
	f.closeMu.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()

		close(f.stopCh)
		<-f.doneCh
		if f.fsw != nil {
			err = f.fsw.Close()
		}
		f.watch.clear()
	})
	return err
}

func (f *File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *File) run() {
	defer close(f.doneCh)
	ctx := f.logg.WithField(context.Background(), "storage_dir", f.dir)

	for {
		select {
		case <-f.stopCh:
			return
		case event, ok := <-f.fsw.Events:
			if !ok {
				return
			}
			f.handleEvent(event)
		case err, ok := <-f.fsw.Errors:
			if !ok {
				return
			}
			f.logg.Error(ctx, "storage file watcher error", err)
		}
	}
}

func (f *File) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	key, ok := keyFromPath(event.Name)
	if !ok {
		return
	}

	// The event only says something happened; the file holds the truth.
	data, err := os.ReadFile(f.path(key))
	current := fileState{value: string(data)}
	if errors.Is(err, fs.ErrNotExist) {
		current = fileState{deleted: true}
	} else if err != nil {
		f.logg.Warn(f.logg.WithField(context.Background(), "storage_key", key), "storage file unreadable after change")
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	prev, seen := f.known[key]
	if seen && prev == current {
		f.mu.Unlock()
		return
	}
	f.known[key] = current
	f.mu.Unlock()

	if !seen && current.deleted {
		return
	}
	f.watch.notify(Change{Key: key, Value: current.value, Deleted: current.deleted})
}
