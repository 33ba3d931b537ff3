// Package auth supplies bearer tokens to the REST client and the channel.
//
// Token issuance is handled elsewhere; this package only reads tokens and
// notices when they change.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNoToken is returned when no token is available.
var ErrNoToken = errors.New("no auth token available")

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FileTokenSource reads the token from a file and re-reads it whenever the
// file changes. It watches the parent directory so that editors and secret
// managers that replace the file atomically are handled.
type FileTokenSource struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	token    string
	onChange []func(string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileTokenSource reads path once and starts watching it for changes.
// Call Close to stop watching.
func NewFileTokenSource(path string, logger *zap.Logger) (*FileTokenSource, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token file %s: %w", path, err)
	}

	fs := &FileTokenSource{
		path:   absPath,
		logger: logger.Named("auth"),
		done:   make(chan struct{}),
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch token directory: %w", err)
	}
	fs.watcher = watcher

	fs.wg.Add(1)
	go fs.processEvents()

	return fs, nil
}

// Token implements TokenSource.
func (fs *FileTokenSource) Token() (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if fs.token == "" {
		return "", ErrNoToken
	}
	return fs.token, nil
}

// OnChange registers fn to be called with the new token after the file
// changes to a different non-empty value.
func (fs *FileTokenSource) OnChange(fn func(token string)) {
	fs.mu.Lock()
	fs.onChange = append(fs.onChange, fn)
	fs.mu.Unlock()
}

// Close stops watching the token file. It blocks until the event loop exits.
func (fs *FileTokenSource) Close() error {
	select {
	case <-fs.done:
		return nil
	default:
	}
	close(fs.done)
	err := fs.watcher.Close()
	fs.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (fs *FileTokenSource) processEvents() {
	defer fs.wg.Done()

	for {
		select {
		case <-fs.done:
			return

		case event, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fs.path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := fs.reload(); err != nil {
				fs.logger.Warn("token reload failed", zap.Error(err))
			}

		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.logger.Warn("token watcher error", zap.Error(err))
		}
	}
}

func (fs *FileTokenSource) reload() error {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("failed to read token file %s: %w", fs.path, err)
	}
	token := strings.TrimSpace(string(data))

	fs.mu.Lock()
	changed := token != "" && token != fs.token
	if token != "" {
		fs.token = token
	}
	callbacks := slices.Clone(fs.onChange)
	fs.mu.Unlock()

	if changed {
		fs.logger.Debug("token reloaded", zap.String("path", fs.path))
		for _, fn := range callbacks {
			fn(token)
		}
	}
	return nil
}
