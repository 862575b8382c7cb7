package mocks

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

// FileSystem is a thread-safe test double for ports.FileSystem.
// Missing paths produce errors matching os.ErrNotExist.
type FileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
	modes map[string]os.FileMode
	dirs  map[string]bool
	fails map[string]error
}

// NewFileSystem creates a new FileSystem mock.
func NewFileSystem() *FileSystem {
	return &FileSystem{
		files: make(map[string][]byte),
		modes: make(map[string]os.FileMode),
		dirs:  make(map[string]bool),
		fails: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (fs *FileSystem) AddFile(path string, content string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = []byte(content)
	fs.modes[path] = 0o644
}

// AddDir adds a directory to the mock filesystem.
func (fs *FileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
}

// FailRead makes ReadFile of path return err. Exists is unaffected.
func (fs *FileSystem) FailRead(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fails[path] = err
}

// Content returns a file's content as a string, or "" if it is missing.
func (fs *FileSystem) Content(path string) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return string(fs.files[path])
}

// ReadFile reads a file from the mock filesystem.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if err := fs.fails[path]; err != nil {
		return nil, err
	}
	if content, ok := fs.files[path]; ok {
		return append([]byte(nil), content...), nil
	}
	return nil, notFound(path)
}

// WriteFile writes a file to the mock filesystem.
func (fs *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = append([]byte(nil), data...)
	fs.modes[path] = perm
	return nil
}

// Exists checks if a file exists in the mock filesystem.
func (fs *FileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, fileExists := fs.files[path]
	return fileExists || fs.dirs[path]
}

// IsDir checks if a path is a directory in the mock filesystem.
func (fs *FileSystem) IsDir(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.dirs[path]
}

// MkdirAll creates a directory in the mock filesystem.
func (fs *FileSystem) MkdirAll(path string, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.dirs[path] = true
	return nil
}

// Remove removes a file from the mock filesystem.
func (fs *FileSystem) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, path)
	delete(fs.modes, path)
	delete(fs.dirs, path)
	return nil
}

// Rename renames a file in the mock filesystem.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	content, ok := fs.files[oldPath]
	if !ok {
		return notFound(oldPath)
	}
	fs.files[newPath] = content
	fs.modes[newPath] = fs.modes[oldPath]
	delete(fs.files, oldPath)
	delete(fs.modes, oldPath)
	return nil
}

// GetFileInfo returns metadata about a file in the mock filesystem.
func (fs *FileSystem) GetFileInfo(path string) (ports.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if content, ok := fs.files[path]; ok {
		return ports.FileInfo{
			Size:    int64(len(content)),
			Mode:    fs.modes[path],
			ModTime: time.Now(),
			IsDir:   false,
		}, nil
	}

	if fs.dirs[path] {
		return ports.FileInfo{
			Mode:    os.ModeDir | 0o755,
			ModTime: time.Now(),
			IsDir:   true,
		}, nil
	}

	return ports.FileInfo{}, notFound(path)
}

// Reset clears all files and directories.
func (fs *FileSystem) Reset() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files = make(map[string][]byte)
	fs.modes = make(map[string]os.FileMode)
	fs.dirs = make(map[string]bool)
}

func notFound(path string) error {
	return fmt.Errorf("%s: %w", path, os.ErrNotExist)
}

// Ensure FileSystem implements ports.FileSystem.
var _ ports.FileSystem = (*FileSystem)(nil)
