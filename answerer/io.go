package answerer

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// InputParseOptions allows callers to choose which CSV columns map to record fields.
type InputParseOptions struct {
	IndexColumn    string
	QuestionColumn string
}

// ParseInputRecords reads questions from a CSV, TSV or plain text file.
func ParseInputRecords(path string) ([]InputRecord, error) {
	return ParseInputRecordsWithOptions(path, InputParseOptions{})
}

// ParseInputRecordsWithOptions allows callers to specify column mappings when reading structured files.
func ParseInputRecordsWithOptions(path string, opts InputParseOptions) ([]InputRecord, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return parseDelimitedRecords(path, ',', opts)
	case ".tsv":
		return parseDelimitedRecords(path, '\t', opts)
	default:
		return parsePlainTextRecords(path)
	}
}

func parsePlainTextRecords(path string) ([]InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text file: %w", err)
	}
	defer f.Close()
	var out []InputRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := trimCell(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, InputRecord{Index: strconv.Itoa(len(out) + 1), Question: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan text file: %w", err)
	}
	return out, nil
}

func parseDelimitedRecords(path string, comma rune, opts InputParseOptions) ([]InputRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = trimCell(cell)
	}
	candidates := getColumnCandidates()
	idCol, err := resolveColumn(header, opts.IndexColumn, candidates.Index)
	if err != nil {
		return nil, err
	}
	questionCol, err := resolveColumn(header, opts.QuestionColumn, candidates.Question)
	if err != nil {
		return nil, err
	}
	if questionCol.pos < 0 {
		questionCol.pos = 0
	}
	if idCol.header || questionCol.header {
		rows = rows[1:]
	}

	records := make([]InputRecord, 0, len(rows))
	for n, row := range rows {
		text := cellAt(row, questionCol.pos)
		if text == "" {
			continue
		}
		id := cellAt(row, idCol.pos)
		if id == "" {
			id = strconv.Itoa(n + 1)
		}
		records = append(records, InputRecord{Index: id, Question: text})
	}
	return records, nil
}

func trimCell(v string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "\ufeff"))
}

func cellAt(row []string, pos int) string {
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return trimCell(row[pos])
}

// column is a resolved input column; pos is -1 when the file has none.
type column struct {
	pos int
	// header reports that a header cell matched, so the first row is not data.
	header bool
}

// resolveColumn picks a column by an explicit header name or "#n" position,
// or else by the first header cell equal to one of names.
func resolveColumn(header []string, explicit string, names []string) (column, error) {
	if want := strings.TrimSpace(explicit); want != "" {
		return explicitColumn(header, want)
	}
	pos := slices.IndexFunc(header, func(cell string) bool {
		return slices.ContainsFunc(names, func(name string) bool { return strings.EqualFold(cell, name) })
	})
	return column{pos: pos, header: pos >= 0}, nil
}

func explicitColumn(header []string, want string) (column, error) {
	if pos := slices.IndexFunc(header, func(cell string) bool { return strings.EqualFold(cell, want) }); pos >= 0 {
		return column{pos: pos, header: true}, nil
	}
	num, ok := strings.CutPrefix(want, "#")
	if !ok {
		return column{pos: -1}, fmt.Errorf("column %q not found", want)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	switch {
	case err != nil:
		return column{pos: -1}, fmt.Errorf("invalid column index %q", want)
	case n <= 0:
		return column{pos: -1}, fmt.Errorf("column indices are 1-based: %q", want)
	case n > len(header):
		return column{pos: -1}, fmt.Errorf("column index %s is out of range", want)
	}
	return column{pos: n - 1}, nil
}
