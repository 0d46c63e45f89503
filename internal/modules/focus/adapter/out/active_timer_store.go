package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"grove/internal/modules/focus/domain"
	focusout "grove/internal/modules/focus/port/out"
	apperrors "grove/internal/platform/errors"
)

type FileActiveTimerStore struct {
	path string
}

func NewFileActiveTimerStore(path string) focusout.ActiveTimerStore {
	return &FileActiveTimerStore{path: path}
}

func (s *FileActiveTimerStore) SaveActive(_ context.Context, timer domain.ActiveTimer) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create active timer dir: %w", err)
	}
	payload, err := json.MarshalIndent(timer, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal active timer: %w", err)
	}
	if err := writeFileAtomic(s.path, payload); err != nil {
		return fmt.Errorf("write active timer: %w", err)
	}
	return nil
}

func (s *FileActiveTimerStore) LoadActive(_ context.Context) (domain.ActiveTimer, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ActiveTimer{}, apperrors.ErrNoActiveTimer
		}
		return domain.ActiveTimer{}, fmt.Errorf("read active timer: %w", err)
	}
	timer := domain.ActiveTimer{}
	if err := json.Unmarshal(payload, &timer); err != nil {
		return domain.ActiveTimer{}, fmt.Errorf("decode active timer: %w", err)
	}
	if timer.RunID == "" {
		return domain.ActiveTimer{}, apperrors.ErrNoActiveTimer
	}
	return timer, nil
}

func (s *FileActiveTimerStore) ClearActive(_ context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear active timer: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path with payload so a crash never leaves a torn file.
func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
