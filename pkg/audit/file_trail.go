package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const filePrefix = "audit-"

// FileTrail stores audit events as JSON lines in date-partitioned files
// (`audit-2006-01-02.jsonl`). A mutex plus O_APPEND writes keep concurrent
// appends from interleaving partial records.
type FileTrail struct {
	root string
	mu   sync.Mutex
}

// NewFileTrail creates a file-backed audit trail rooted at dir.
func NewFileTrail(dir string) (*FileTrail, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	return &FileTrail{root: dir}, nil
}

// Log appends one event. The record is flushed to the file before Log
// returns.
func (t *FileTrail) Log(event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	path := t.partition(event.Timestamp)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- path is derived from the trail root
	if err != nil {
		return fmt.Errorf("open audit partition: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	return f.Sync()
}

// Query returns events matching the filter, most recent first, up to
// limit. A limit <= 0 means no limit.
func (t *FileTrail) Query(filter Filter, limit int) ([]Event, error) {
	all, err := t.readAll()
	if err != nil {
		return nil, err
	}

	matched := make([]Event, 0, len(all))

	for _, event := range all {
		if filter.matches(event) {
			matched = append(matched, event)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// Statistics aggregates event counts, optionally scoped to one workflow.
// The success rate is success/(success+error), 0.0 when both are zero.
func (t *FileTrail) Statistics(workflowID string) (Statistics, error) {
	all, err := t.readAll()
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{ByType: make(map[string]int)}

	var successCount, errorCount int

	for _, event := range all {
		if workflowID != "" && event.WorkflowID != workflowID {
			continue
		}

		stats.Total++
		stats.ByType[string(event.Type)]++

		if successEvent(event) {
			successCount++
		}

		if errorEvent(event) {
			errorCount++
		}
	}

	if successCount+errorCount > 0 {
		stats.SuccessRate = float64(successCount) / float64(successCount+errorCount)
	}

	return stats, nil
}

// Close flushes nothing extra; appends are synced per Log call.
func (t *FileTrail) Close() error {
	return nil
}

func (t *FileTrail) partition(ts time.Time) string {
	return filepath.Join(t.root, filePrefix+ts.UTC().Format("2006-01-02")+".jsonl")
}

func (t *FileTrail) readAll() ([]Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := os.ReadDir(t.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}

		return nil, fmt.Errorf("read audit directory: %w", err)
	}

	var all []Event

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}

		events, err := readPartition(filepath.Join(t.root, name))
		if err != nil {
			return nil, err
		}

		all = append(all, events...)
	}

	return all, nil
}

func readPartition(path string) ([]Event, error) {
	f, err := os.Open(path) // #nosec G304 -- path is derived from the trail root
	if err != nil {
		return nil, fmt.Errorf("open audit partition: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var events []Event

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			// A torn trailing line from a crashed writer is skipped, not fatal.
			continue
		}

		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit partition: %w", err)
	}

	return events, nil
}
