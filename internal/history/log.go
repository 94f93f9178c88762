// Package history keeps one append-only text file of transfer entries per account.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Proton-105/minibank/internal/errors"
)

// Empty is returned by ReadAll for an account without entries.
const Empty = "📭 No transactions yet"

var separator = strings.Repeat("─", 45)

type Log struct {
	dir string
	log *slog.Logger
	mu  sync.Mutex
}

func New(dir string, log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}

	return &Log{
		dir: dir,
		log: log.With(slog.String("component", "history")),
	}
}

func (l *Log) Initialize() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return errors.NewStorageError(fmt.Errorf("create history dir: %w", err))
	}
	return nil
}

// Append adds one entry followed by a separator line. Entries are never rewritten.
func (l *Log) Append(ctx context.Context, accountID int64, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.pathFor(accountID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.NewStorageError(fmt.Errorf("open history: %w", err))
	}
	defer f.Close()

	if _, err := f.WriteString(text + "\n" + separator + "\n"); err != nil {
		return errors.NewStorageError(fmt.Errorf("append history: %w", err))
	}

	l.log.DebugContext(ctx, "history entry appended", slog.Int64("account_id", accountID))
	return nil
}

// ReadAll returns the trimmed history of an account, or Empty.
func (l *Log) ReadAll(_ context.Context, accountID int64) (string, error) {
	data, err := os.ReadFile(l.pathFor(accountID))
	if os.IsNotExist(err) {
		return Empty, nil
	}
	if err != nil {
		return "", errors.NewStorageError(fmt.Errorf("read history: %w", err))
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return Empty, nil
	}
	return text, nil
}

func (l *Log) pathFor(accountID int64) string {
	return filepath.Join(l.dir, strconv.FormatInt(accountID, 10)+".txt")
}

// Tail keeps the last limit runes of text.
func Tail(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}
