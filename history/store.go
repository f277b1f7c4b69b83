package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avelinom/scout/conversation"
)

var (
	// ErrNotFound is returned when no session exists for the given id.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps failures of the backing medium. Callers
	// log and keep the turn alive in memory rather than crashing.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// SessionInfo is a summary used to list sessions without loading full
// state. Rebuilt from the store directory, never authoritative over the
// persisted records.
type SessionInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Messages  int       `json:"messages"`
	ToolCalls int       `json:"tool_calls"`
}

// Store persists conversations as one JSON file per session. Saves are
// atomic from the reader's perspective (write to temp file, then rename).
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// DefaultDir returns the per-user sessions directory.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".scout", "sessions"), nil
}

// NewSessionID mints a fresh session id. Legacy conv_N ids from earlier
// releases still load; new ids avoid the racy shared counter.
func NewSessionID() string {
	return fmt.Sprintf("conv_%s_%s",
		time.Now().Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Save writes the conversation to disk atomically.
func (s *Store) Save(conv *conversation.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", conv.SessionID, err)
	}

	final := s.path(conv.SessionID)
	tmp, err := os.CreateTemp(s.dir, conv.SessionID+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Debug("session saved", "session_id", conv.SessionID, "bytes", len(data))
	return nil
}

// Load reads one session from disk.
func (s *Store) Load(sessionID string) (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var conv conversation.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", sessionID, err)
	}
	return &conv, nil
}

// Delete removes a session's durable record. Deleting a missing session is
// not an error.
func (s *Store) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ListAll scans the store directory and returns session summaries sorted
// by creation time, newest first. Unreadable files are skipped.
func (s *Store) ListAll() ([]SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var conv conversation.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			s.logger.Warn("skipping unreadable session file", "file", name, "error", err)
			continue
		}
		if conv.SessionID == "" {
			continue
		}

		sessions = append(sessions, SessionInfo{
			ID:        conv.SessionID,
			Title:     conv.Title(),
			CreatedAt: conv.CreatedAt,
			Messages:  len(conv.Messages),
			ToolCalls: len(conv.ToolCalls),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// LatestID returns the id of the most recently created session, or
// ErrNotFound when the store is empty.
func (s *Store) LatestID() (string, error) {
	sessions, err := s.ListAll()
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", ErrNotFound
	}
	return sessions[0].ID, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}
