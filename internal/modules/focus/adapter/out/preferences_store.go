package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	focusout "grove/internal/modules/focus/port/out"
)

type preferencesFile struct {
	DurationMinutes     *float64 `yaml:"durationMinutes,omitempty"`
	OnboardingCompleted bool     `yaml:"onboardingCompleted"`
}

// YAMLPreferencesStore keeps user preferences in a small YAML document.
// Every write rewrites the whole file.
type YAMLPreferencesStore struct {
	path string
	mu   sync.Mutex
}

func NewYAMLPreferencesStore(path string) focusout.PreferencesStore {
	return &YAMLPreferencesStore{path: path}
}

func (s *YAMLPreferencesStore) DurationMinutes(_ context.Context) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.read()
	if err != nil {
		return 0, false, err
	}
	if prefs.DurationMinutes == nil {
		return 0, false, nil
	}
	return *prefs.DurationMinutes, true, nil
}

func (s *YAMLPreferencesStore) SetDurationMinutes(_ context.Context, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.read()
	if err != nil {
		return err
	}
	v := float64(minutes)
	prefs.DurationMinutes = &v
	return s.write(prefs)
}

func (s *YAMLPreferencesStore) OnboardingCompleted(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.read()
	if err != nil {
		return false, err
	}
	return prefs.OnboardingCompleted, nil
}

func (s *YAMLPreferencesStore) SetOnboardingCompleted(_ context.Context, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefs, err := s.read()
	if err != nil {
		return err
	}
	prefs.OnboardingCompleted = completed
	return s.write(prefs)
}

func (s *YAMLPreferencesStore) read() (preferencesFile, error) {
	prefs := preferencesFile{}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("read preferences: %w", err)
	}
	if err := yaml.Unmarshal(raw, &prefs); err != nil {
		return preferencesFile{}, fmt.Errorf("decode preferences: %w", err)
	}
	return prefs, nil
}

func (s *YAMLPreferencesStore) write(prefs preferencesFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	raw, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := writeFileAtomic(s.path, raw); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}
