package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/madetocreate/ai-shield/internal/redact"
	"github.com/madetocreate/ai-shield/internal/scanner"
)

// FileStore appends records to a JSON Lines file.
type FileStore struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileStore opens path for appending, creating it with mode 0600.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &FileStore{file: file}, nil
}

func (s *FileStore) Write(ctx context.Context, record Record) error {
	return s.WriteBatch(ctx, []Record{record})
}

func (s *FileStore) WriteBatch(_ context.Context, records []Record) error {
	var buf []byte
	for _, rec := range records {
		// Violation text can quote matched secrets.
		rec.SecurityReason = redact.RedactAll(rec.SecurityReason)
		rec.Violations = redactViolations(rec.Violations)

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		buf = append(buf, data...)
		buf = append(buf, '\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return os.ErrClosed
	}
	_, err := s.file.Write(buf)
	return err
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

func redactViolations(vs []scanner.Violation) []scanner.Violation {
	out := make([]scanner.Violation, len(vs))
	for i, v := range vs {
		v.Message = redact.RedactAll(v.Message)
		v.Detail = redact.RedactAll(v.Detail)
		out[i] = v
	}
	return out
}

// ReadFile loads every record from a JSON Lines audit file. Lines that do
// not parse are skipped.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, sc.Err()
}
