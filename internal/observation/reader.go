package observation

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format is the record encoding of an observation file.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// ErrUnsupportedFormat is returned for file extensions the reader cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported observation format")

// counterColumns maps lowercased header names to counter keys.
var counterColumns = map[string]string{
	"nblocks":     CounterBlocks,
	"nmethod":     CounterMethods,
	"ninsts":      CounterInsts,
	"ndatawrites": CounterDataWrites,
	"ndatareads":  CounterDataReads,
}

// Reader decodes observation records.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader that reports skipped rows to logger.
func NewReader(logger *slog.Logger) *Reader {
	return &Reader{logger: logger}
}

// ReadFile reads every record of path. The format follows the extension:
// .csv or .jsonl, optionally followed by .gz or .zst.
func (r *Reader) ReadFile(path string) ([]Record, error) {
	format, compression, err := detect(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open observations: %w", err)
	}
	defer file.Close()

	var src io.Reader = bufio.NewReader(file)
	switch compression {
	case ".gz":
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	case ".zst":
		zr, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	records, err := r.Read(src, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	r.logger.Info("read observations", "path", path, "format", format, "records", len(records))
	return records, nil
}

func detect(path string) (Format, string, error) {
	name := strings.ToLower(filepath.Base(path))

	compression := ""
	for _, ext := range []string{".gz", ".zst"} {
		if strings.HasSuffix(name, ext) {
			compression = ext
			name = strings.TrimSuffix(name, ext)
			break
		}
	}

	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, compression, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, compression, nil
	}
	return "", "", fmt.Errorf("%w: %s (expected .csv or .jsonl, optionally .gz or .zst)", ErrUnsupportedFormat, path)
}

// Read decodes records from src.
func (r *Reader) Read(src io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatCSV:
		return r.readCSV(src)
	case FormatJSONL:
		return r.readJSONL(src)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func (r *Reader) readCSV(src io.Reader) ([]Record, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	taskCol, paramsCol, complexityCol := -1, -1, -1
	counters := make(map[int]string)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		switch key {
		case "game", "task":
			taskCol = i
		case "parameters":
			paramsCol = i
		case "complexity":
			complexityCol = i
		default:
			if c, ok := counterColumns[key]; ok {
				counters[i] = c
			}
		}
	}
	if taskCol < 0 || paramsCol < 0 || complexityCol < 0 {
		return nil, errors.New("csv header must contain game (or task), parameters and complexity columns")
	}

	var records []Record
	skipped := 0
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row %d: %w", line, err)
		}

		rec, err := csvRecord(row, taskCol, paramsCol, complexityCol, counters)
		if err != nil {
			skipped++
			r.logger.Debug("skipping observation", "line", line, "error", err)
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		r.logger.Warn("skipped malformed observations", "skipped", skipped, "kept", len(records))
	}
	return records, nil
}

func csvRecord(row []string, taskCol, paramsCol, complexityCol int, counters map[int]string) (Record, error) {
	need := max(taskCol, paramsCol, complexityCol)
	if len(row) <= need {
		return Record{}, fmt.Errorf("row has %d columns", len(row))
	}

	rec := Record{
		Task:       strings.TrimSpace(row[taskCol]),
		Parameters: row[paramsCol],
	}
	if rec.Task == "" {
		return Record{}, errors.New("empty task")
	}

	c, err := strconv.ParseFloat(strings.TrimSpace(row[complexityCol]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid complexity: %w", err)
	}
	rec.Complexity = c

	for i, name := range counters {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(row[i]), 10, 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		if rec.Counters == nil {
			rec.Counters = make(map[string]int64, len(counters))
		}
		rec.Counters[name] = v
	}
	return rec, nil
}

// jsonRecord accepts both "task" and "game" keys.
type jsonRecord struct {
	Task       string           `json:"task"`
	Game       string           `json:"game"`
	Parameters string           `json:"parameters"`
	Complexity *float64         `json:"complexity"`
	Counters   map[string]int64 `json:"counters"`
}

func (r *Reader) readJSONL(src io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var records []Record
	skipped := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var jr jsonRecord
		if err := json.Unmarshal([]byte(text), &jr); err != nil {
			skipped++
			r.logger.Debug("skipping observation", "line", line, "error", err)
			continue
		}

		task := jr.Task
		if task == "" {
			task = jr.Game
		}
		if task == "" || jr.Complexity == nil {
			skipped++
			r.logger.Debug("skipping observation", "line", line, "error", "task and complexity are required")
			continue
		}

		records = append(records, Record{
			Task:       task,
			Parameters: jr.Parameters,
			Complexity: *jr.Complexity,
			Counters:   jr.Counters,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read jsonl line %d: %w", line+1, err)
	}

	if skipped > 0 {
		r.logger.Warn("skipped malformed observations", "skipped", skipped, "kept", len(records))
	}
	return records, nil
}
