package config

import (
	"context"
	"log/slog"
)

// Remote is a network-backed settings store holding a single document.
type Remote interface {
	// Load returns the stored settings and whether a document exists.
	Load(ctx context.Context) (Settings, bool, error)
	Save(ctx context.Context, s Settings) error
}

// Store reads and writes settings remote-first, falling back to the local file.
type Store struct {
	remote Remote
	file   *FileStore
	logger *slog.Logger
}

// NewStore creates a settings store. remote may be nil for file-only operation.
func NewStore(remote Remote, file *FileStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{remote: remote, file: file, logger: logger}
}

// Load returns the persisted settings.
// An empty remote document is seeded from the local file.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	if s.remote == nil {
		return s.file.Load()
	}

	remote, found, err := s.remote.Load(ctx)
	if err != nil {
		s.logger.Warn("remote settings load failed, using local file",
			"path", s.file.Path(),
			"error", err)
		return s.file.Load()
	}
	if found && !remote.IsZero() {
		return remote, nil
	}

	local, err := s.file.Load()
	if err != nil {
		return Settings{}, err
	}
	if local.IsZero() {
		return remote, nil
	}

	if err := s.remote.Save(ctx, local); err != nil {
		s.logger.Warn("failed to seed remote settings from local file", "error", err)
	} else {
		s.logger.Info("seeded remote settings from local file", "path", s.file.Path())
	}
	return local, nil
}

// Save persists settings to the remote, or to the local file when the remote fails.
func (s *Store) Save(ctx context.Context, settings Settings) error {
	if s.remote != nil {
		err := s.remote.Save(ctx, settings)
		if err == nil {
			return nil
		}
		s.logger.Warn("remote settings save failed, writing local file",
			"path", s.file.Path(),
			"error", err)
	}
	return s.file.Save(settings)
}
