package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type fsStore struct {
	basePath string
}

// NewStore creates a filesystem-based store that keeps one JSON file per key
// under basePath.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

func (s *fsStore) keyPath(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid key %q: must be a plain name", key)
	}
	return filepath.Join(s.basePath, key+".json"), nil
}

func (s *fsStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	filePath, err := s.keyPath(key)
	if err != nil {
		return nil, false, err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Collection file does not exist")
			return nil, false, nil
		}
		log.WithError(err).Error("Failed to read collection file")
		return nil, false, err
	}
	return data, true, nil
}

// Save writes data to a temporary file and renames it into place so readers never
// observe a partially written collection.
func (s *fsStore) Save(ctx context.Context, key string, data []byte) error {
	filePath, err := s.keyPath(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "path": filePath})

	tmp, err := os.CreateTemp(s.basePath, key+".*.tmp")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		log.WithError(err).Error("Failed to write collection file")
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		log.WithError(err).Error("Failed to move collection file into place")
		return err
	}

	log.WithField("data_length", len(data)).Debug("Collection saved")
	return nil
}

func (s *fsStore) Remove(ctx context.Context, key string) error {
	filePath, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("path", filePath).Error("Failed to delete collection file")
		return err
	}
	return nil
}
