package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// AppendLedger appends one ledger as a JSON line to the durable audit
// log. Entries are only ever appended, never rewritten.
func AppendLedger(path string, ledger *Ledger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	payload, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open ledger log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// AuditRecord is the flattened per-ledger row stored in Parquet for
// offline coverage analysis.
type AuditRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Query         string    `parquet:"query"`
	ClaimCount    int       `parquet:"claim_count"`
	MatchedCount  int       `parquet:"matched_count"`
	Coverage      float64   `parquet:"coverage"`
	UncitedClaims string    `parquet:"uncited_claims"` // JSON string
	StrictPassed  bool      `parquet:"strict_passed"`
}

// ParquetAuditLog batches ledger summaries and writes them to Parquet
// files, one file per flush.
type ParquetAuditLog struct {
	outputDir string
	mu        sync.Mutex
	buffer    []AuditRecord
	batchSize int
}

// NewParquetAuditLog creates the output directory and returns a log with
// the given batch size (100 when <= 0).
func NewParquetAuditLog(outputDir string, batchSize int) (*ParquetAuditLog, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ParquetAuditLog{
		outputDir: outputDir,
		batchSize: batchSize,
		buffer:    make([]AuditRecord, 0, batchSize),
	}, nil
}

// Record buffers one ledger summary, flushing when the batch fills.
func (l *ParquetAuditLog) Record(ledger *Ledger) error {
	uncited, _ := json.Marshal(ledger.UncitedClaims)
	record := AuditRecord{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Query:         ledger.Query,
		ClaimCount:    len(ledger.Claims),
		MatchedCount:  len(ledger.EvidenceMatches),
		Coverage:      ledger.Coverage,
		UncitedClaims: string(uncited),
	}
	if ledger.StrictModePassed != nil {
		record.StrictPassed = *ledger.StrictModePassed
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer = append(l.buffer, record)
	if len(l.buffer) >= l.batchSize {
		return l.flush()
	}
	return nil
}

// Flush writes any buffered records immediately.
func (l *ParquetAuditLog) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (l *ParquetAuditLog) flush() error {
	if len(l.buffer) == 0 {
		return nil
	}
	filename := fmt.Sprintf("provenance_audit_%s_%d.parquet",
		time.Now().Format("20060102_150405"), time.Now().UnixNano())
	if err := parquet.WriteFile(filepath.Join(l.outputDir, filename), l.buffer); err != nil {
		return fmt.Errorf("failed to write audit parquet file: %w", err)
	}
	l.buffer = l.buffer[:0]
	return nil
}
