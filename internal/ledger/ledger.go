// Package ledger provides the append-only execution ledger. Every external
// call/response pair is recorded here before its result is consumed, so a
// crash mid-call loses at most the single in-flight entry.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gopost/publisher/internal/domain"
)

// Ledger is a line-oriented, append-only log. All jobs share one physical
// file; entries remain globally orderable by (job_id, sequence). Appends
// are serialized and written as a single line so concurrent jobs cannot
// interleave inside one entry.
type Ledger struct {
	path string

	mu   sync.Mutex
	file *os.File
	seq  map[string]int
}

// Open creates or opens the ledger file and restores per-job sequence
// counters from existing entries.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := &Ledger{path: path, file: file, seq: make(map[string]int)}
	if err := l.restoreSequences(); err != nil {
		file.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) restoreSequences() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry domain.LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			// A torn final line from a crashed writer is tolerated.
			continue
		}
		if entry.Sequence > l.seq[entry.JobID] {
			l.seq[entry.JobID] = entry.Sequence
		}
	}
	return scanner.Err()
}

// Append writes one entry durably and returns its assigned sequence, which
// is monotonic per job starting at 1. A persistence failure is returned to
// the caller, never swallowed; lost entries would break replay guarantees.
func (l *Ledger) Append(entry domain.LedgerEntry) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq[entry.JobID]++
	entry.Sequence = l.seq[entry.JobID]

	line, err := json.Marshal(entry)
	if err != nil {
		l.seq[entry.JobID]--
		return 0, fmt.Errorf("marshal ledger entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		l.seq[entry.JobID]--
		return 0, fmt.Errorf("append ledger entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync ledger: %w", err)
	}
	return entry.Sequence, nil
}

// LastSequence returns the highest sequence recorded for a job, 0 if none.
func (l *Ledger) LastSequence(jobID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq[jobID]
}

// ReadAll returns every entry for a job ordered by sequence. Each call
// re-reads the file, so the read is restartable and sees entries appended
// by other processes tailing the same log.
func (l *Ledger) ReadAll(jobID string) ([]domain.LedgerEntry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer f.Close()

	var entries []domain.LedgerEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var entry domain.LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if entry.JobID == jobID {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return entries, nil
}

// Close releases the underlying file handle.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
