package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"bitevo/internal/evo"
)

var csvHeader = []string{"generation", "avg_fitness", "min_fitness", "max_fitness"}

// CSVLogger appends one record per qualifying generation to a timestamp-named
// file and flushes after every record.
type CSVLogger struct {
	mu     sync.Mutex
	every  int
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVLogger creates stats_<YYYYMMDD_HHMMSS>.csv in dir and writes the
// header. Generations are logged when generation % every == 0.
func NewCSVLogger(dir string, every int, now time.Time) (*CSVLogger, error) {
	if every <= 0 {
		every = 1
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fmt.Sprintf("stats_%s.csv", now.Format("20060102_150405")))
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	logger := &CSVLogger{every: every, path: path, file: file, writer: csv.NewWriter(file)}
	if err := logger.write(csvHeader); err != nil {
		_ = file.Close()
		return nil, err
	}
	return logger, nil
}

func (l *CSVLogger) Path() string {
	return l.path
}

func (l *CSVLogger) Record(stats evo.GenerationStats) error {
	if stats.Generation%l.every != 0 {
		return nil
	}
	return l.write(csvRecord(stats))
}

func (l *CSVLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	flushErr := l.writer.Error()
	closeErr := l.file.Close()
	l.file = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (l *CSVLogger) write(record []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("csv logger %s is closed", l.path)
	}
	if err := l.writer.Write(record); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

func csvRecord(stats evo.GenerationStats) []string {
	return []string{
		strconv.Itoa(stats.Generation),
		strconv.FormatFloat(stats.AvgFitness, 'f', -1, 64),
		strconv.Itoa(stats.MinFitness),
		strconv.Itoa(stats.MaxFitness),
	}
}
