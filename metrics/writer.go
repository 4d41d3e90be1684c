package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type SearchRecord struct {
	Turn   int
	Action string
	SearchMetric
}

type Writer struct {
	baseDir string
}

// NewWriter creates a subfolder of dir named by the current timestamp.
func NewWriter(dir string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405.000Z")
	baseDir := filepath.Join(dir, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string { return w.baseDir }

// WriteRewardHistory writes one row per rollout estimate.
func (w *Writer) WriteRewardHistory(history []float64) error {
	rows := make([][]string, 0, len(history)+1)
	rows = append(rows, []string{"rollout", "estimate"})
	for i, estimate := range history {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(estimate, 'g', -1, 64),
		})
	}

	if err := writeFile(filepath.Join(w.baseDir, "reward_history.csv"), rows); err != nil {
		return fmt.Errorf("failed to write reward history: %w", err)
	}
	return nil
}

func (w *Writer) WriteSearchRecords(records []SearchRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"turn", "search_id", "action", "duration", "rollouts", "expansions", "terminal_leaves", "is_tree_reused"})
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Turn),
			record.SearchID,
			record.Action,
			record.Duration.String(),
			strconv.Itoa(record.Rollouts),
			strconv.Itoa(record.Expansions),
			strconv.Itoa(record.TerminalLeaves),
			strconv.FormatBool(record.IsTreeReused),
		})
	}

	if err := writeFile(filepath.Join(w.baseDir, "search_records.csv"), rows); err != nil {
		return fmt.Errorf("failed to write search records: %w", err)
	}
	return nil
}

func writeFile(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeRows(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeRows flushes before returning so that buffered write errors surface.
func writeRows(out io.Writer, rows [][]string) error {
	return csv.NewWriter(out).WriteAll(rows)
}
