package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/algofinserve/stock-alerts/internal/models"
	"go.uber.org/zap"
)

// ReportGenerator writes the end-of-day alert summary from the in-memory
// index and clears it for the next run.
type ReportGenerator struct {
	index  *AlertIndex
	dir    string
	logger *zap.Logger
}

// NewReportGenerator creates a generator writing into dir.
func NewReportGenerator(index *AlertIndex, dir string, logger *zap.Logger) *ReportGenerator {
	return &ReportGenerator{index: index, dir: dir, logger: logger}
}

type reportRow struct {
	Symbol     string
	Direction  models.Direction
	Count      int
	FirstPrice float64
	LastPrice  float64
	Scans      int
}

// Generate ranks symbols by alert count per direction, writes the CSV and
// clears the index. Returns the written file path.
func (g *ReportGenerator) Generate() (string, error) {
	snap := g.index.Snapshot()

	var rows []reportRow
	for symbol, byDir := range snap {
		for dir, events := range byDir {
			if len(events) == 0 {
				continue
			}
			scans := make(map[string]struct{})
			for _, ev := range events {
				scans[ev.ScanName] = struct{}{}
			}
			rows = append(rows, reportRow{
				Symbol:     symbol,
				Direction:  dir,
				Count:      len(events),
				FirstPrice: events[0].Price,
				LastPrice:  events[len(events)-1].Price,
				Scans:      len(scans),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	path := filepath.Join(g.dir, fmt.Sprintf("alert_report_%s.csv", time.Now().Format("2006-01-02")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol", "direction", "alerts", "first_price", "last_price", "scans"}); err != nil {
		return "", err
	}
	for _, r := range rows {
		record := []string{
			r.Symbol,
			string(r.Direction),
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.FirstPrice, 'f', 2, 64),
			strconv.FormatFloat(r.LastPrice, 'f', 2, 64),
			strconv.Itoa(r.Scans),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	g.index.Clear()
	g.logger.Info("end-of-day report generated",
		zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}
