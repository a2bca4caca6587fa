package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
)

// FileStore keeps one JSON document per delivery date. It is the
// fallback target when the database is unavailable and the backfill
// source once it recovers.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fs *FileStore) path(date string) string {
	return filepath.Join(fs.dir, fmt.Sprintf("position_%s.json", date))
}

// SavePosition writes the position atomically: a temp file in the same
// directory followed by a rename, so readers never observe a torn write.
func (fs *FileStore) SavePosition(pos *domain.Position) error {
	if err := os.MkdirAll(fs.dir, 0755); err != nil {
		return fmt.Errorf("failed to create position dir: %w", err)
	}

	data, err := json.MarshalIndent(pos, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	final := fs.path(pos.DeliveryDate)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write position file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace position file: %w", err)
	}

	slog.Debug("Position file saved",
		slog.String("date", pos.DeliveryDate),
		slog.String("path", final))
	return nil
}

// LoadPosition reads the position for a delivery date, or ErrNotFound.
func (fs *FileStore) LoadPosition(date string) (*domain.Position, error) {
	data, err := os.ReadFile(fs.path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read position file: %w", err)
	}

	var pos domain.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position file: %w", err)
	}
	if pos.DeliveryDate == "" {
		pos.DeliveryDate = date
	}
	return &pos, nil
}
