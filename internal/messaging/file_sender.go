package messaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileSender appends every message to a log file.
type FileSender struct {
	mu       sync.Mutex
	filePath string
}

// NewFileSender creates a FileSender, making sure the directory exists.
func NewFileSender(filePath string) (*FileSender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("message log file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for message log '%s': %w", dir, err)
	}
	return &FileSender{filePath: filePath}, nil
}

func (s *FileSender) Send(ctx context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open message log: %w", err)
	}
	defer file.Close()

	entry := fmt.Sprintf("--- Message at %s (To: %s) ---\n%s\n--- End Message ---\n\n",
		time.Now().UTC().Format(time.RFC3339Nano), phone, text)
	if _, err := file.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write message log: %w", err)
	}
	return nil
}
