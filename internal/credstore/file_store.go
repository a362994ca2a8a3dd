package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bookmart/pkg/domain"
)

const (
	sessionFile = "session.json"
	cartFile    = "cart.json"
)

// FileStore keeps each blob in its own JSON file under a base directory.
type FileStore struct {
	basePath string
	mu       sync.Mutex
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("credential store base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create credential dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

func (f *FileStore) Session() (domain.StoredSession, bool) {
	var s domain.StoredSession
	if !f.read(sessionFile, &s) || strings.TrimSpace(s.Token) == "" {
		return domain.StoredSession{}, false
	}
	return s, true
}

func (f *FileStore) SetSession(s domain.StoredSession) error {
	return f.write(sessionFile, s)
}

func (f *FileStore) ClearSession() error {
	return f.remove(sessionFile)
}

func (f *FileStore) Cart() ([]domain.CartItem, bool) {
	var items []domain.CartItem
	if !f.read(cartFile, &items) || items == nil {
		return nil, false
	}
	return items, true
}

func (f *FileStore) SetCart(items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	return f.write(cartFile, items)
}

func (f *FileStore) ClearCart() error {
	return f.remove(cartFile)
}

func (f *FileStore) read(name string, out any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := filepath.Join(f.basePath, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt snapshot: drop it rather than fail every read.
		_ = os.Remove(path)
		return false
	}
	return true
}

func (f *FileStore) write(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(filepath.Join(f.basePath, name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(filepath.Join(f.basePath, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
