// Package analysis computes growth, asset structure and liquidity figures
// for a two-year balance sheet and discusses them with an LLM.
package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// ColumnCount is the fixed width of a statement: line item, prior year,
// current year.
const ColumnCount = 3

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	ErrUnsupportedFormat = errors.New("unsupported statement format")
	ErrColumnCount       = errors.New("statement must have exactly 3 columns")
	ErrEmptyStatement    = errors.New("statement has no rows")
	ErrUnreadable        = errors.New("statement cannot be read")
)

// Row is one line of the uploaded statement.
type Row struct {
	Item    string
	Prior   float64
	Current float64
}

type Statement struct {
	Rows []Row
	// Warnings lists cells that were not numbers and were counted as 0.
	Warnings []string
}

// ParseUpload sniffs data and parses it as xlsx or CSV.
func ParseUpload(filename string, data []byte) (Statement, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Statement{}, ErrEmptyStatement
	}

	detected := mimetype.Detect(data)
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case detected.Is(xlsxMIME):
		return ParseXLSX(bytes.NewReader(data))
	case detected.Is("application/zip") && ext == ".xlsx":
		return ParseXLSX(bytes.NewReader(data))
	case isText(detected):
		return ParseCSV(data)
	default:
		return Statement{}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedFormat, detected.String(), filename)
	}
}

func isText(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) (Statement, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Statement{}, fmt.Errorf("%w: open workbook: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Statement{}, ErrEmptyStatement
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Statement{}, fmt.Errorf("%w: read sheet %q: %v", ErrUnreadable, sheets[0], err)
	}
	return fromRecords(rows)
}

// ParseCSV reads a comma or semicolon separated statement.
func ParseCSV(data []byte) (Statement, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var lastErr error
	for _, delimiter := range []rune{',', ';', '\t'} {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = delimiter
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		records, err := reader.ReadAll()
		if err != nil {
			lastErr = err
			continue
		}
		if len(records) > 0 && len(trimTrailingEmpty(records[0])) == ColumnCount {
			return fromRecords(records)
		}
		lastErr = ErrColumnCount
	}
	if errors.Is(lastErr, ErrColumnCount) {
		return Statement{}, ErrColumnCount
	}
	return Statement{}, fmt.Errorf("%w: parse csv: %v", ErrUnreadable, lastErr)
}

// fromRecords treats records[0] as the header row.
func fromRecords(records [][]string) (Statement, error) {
	if len(records) == 0 {
		return Statement{}, ErrEmptyStatement
	}
	if width := len(trimTrailingEmpty(records[0])); width != ColumnCount {
		return Statement{}, fmt.Errorf("%w: header has %d", ErrColumnCount, width)
	}

	var statement Statement
	for idx, record := range records[1:] {
		line := idx + 2
		record = trimTrailingEmpty(record)
		if len(record) == 0 {
			continue
		}
		if len(record) > ColumnCount {
			return Statement{}, fmt.Errorf("%w: row %d has %d", ErrColumnCount, line, len(record))
		}
		for len(record) < ColumnCount {
			record = append(record, "")
		}

		prior, ok := parseAmount(record[1])
		if !ok {
			statement.Warnings = append(statement.Warnings, fmt.Sprintf("row %d: prior year value %q is not a number, counted as 0", line, record[1]))
		}
		current, ok := parseAmount(record[2])
		if !ok {
			statement.Warnings = append(statement.Warnings, fmt.Sprintf("row %d: current year value %q is not a number, counted as 0", line, record[2]))
		}
		statement.Rows = append(statement.Rows, Row{
			Item:    strings.TrimSpace(record[0]),
			Prior:   prior,
			Current: current,
		})
	}
	if len(statement.Rows) == 0 {
		return Statement{}, ErrEmptyStatement
	}
	return statement, nil
}

// parseAmount returns 0 for blank or non-numeric cells. ok is false only
// for non-blank cells that are not numbers.
func parseAmount(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, true
	}
	value, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func trimTrailingEmpty(record []string) []string {
	end := len(record)
	for end > 0 && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}
