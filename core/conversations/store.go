package conversations

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/koscakluka/pixel-core/core/llms"
	"github.com/spf13/afero"
)

// Store is a transcript kept in a JSON file in the form
// [{"role": "user", "parts": ["..."]}, ...]. The file is read once when the
// store is opened and rewritten after every change.
type Store struct {
	mu       sync.Mutex
	fs       afero.Fs
	path     string
	messages []llms.Message
}

// Open loads the transcript at path. A missing file is an empty transcript;
// an unreadable one is logged and replaced on the next save.
func Open(fsys afero.Fs, path string) (*Store, error) {
	s := &Store{fs: fsys, path: path}

	data, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, afero.ErrFileNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read history %s: %w", path, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.messages); err != nil {
		logger.Warn("Ignoring unreadable history file", "path", path, "error", err)
		s.messages = nil
	}
	return s, nil
}

func (s *Store) Messages() []llms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return llms.CloneMessages(s.messages)
}

func (s *Store) Append(messages ...llms.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, llms.CloneMessages(messages)...)
	return s.save()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	return s.save()
}

// save must be called with mu held.
func (s *Store) save() error {
	messages := s.messages
	if messages == nil {
		messages = []llms.Message{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(messages); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write history %s: %w", s.path, err)
	}
	return nil
}
