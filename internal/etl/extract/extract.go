// Package extract turns raw PDF table cells into staging records. It repairs
// multi-line rows (co-instructors continued on the next table row), validates
// classroom identifiers and infers the academic program from the source
// filename.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/avaldezp/olap-horarios/internal/etl/normalizer"
	"github.com/avaldezp/olap-horarios/internal/etl/staging"
)

// ErrNoRecords indicates that every source file was processed but nothing was
// extracted. An empty staging file is never valid output.
var ErrNoRecords = errors.New("extraction produced no records")

// headerMinCells is the cell count required for a row to be a class entry.
const headerMinCells = 8

// continuationMinCells is the cell count required for a co-instructor row.
const continuationMinCells = 7

var numeric = regexp.MustCompile(`^[0-9]+$`)

// Table is one raw table as returned by the PDF source: rows of cell strings.
type Table struct {
	Rows [][]string
}

// TableSource provides the raw tables of a document. Implementations own the
// page-level failure handling; a page that cannot be read is logged and
// skipped, only a document that cannot be opened returns an error.
type TableSource interface {
	Tables(path string) ([]Table, error)
}

// RowError describes a row that could not be turned into a staging record.
type RowError struct {
	File    string
	Row     []string
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s: %s (%v)", e.File, e.Message, e.Row)
}

// Result is the outcome of one extraction run.
type Result struct {
	Records      []staging.Record
	Errors       []RowError
	TotalRows    int
	ParsedRows   int
	SkippedRows  int // unrecognized shapes, expected in malformed tables
	DroppedSalon int // records discarded by the classroom pattern
	FilesFailed  int
}

// Extractor converts raw tables into staging records.
type Extractor struct {
	source     TableSource
	programas  []string
	salonRegex *regexp.Regexp
	logger     *slog.Logger
}

// New creates an extractor. programas is the set of recognized program codes
// and salonRegex the classroom identifier pattern, both from configuration.
func New(source TableSource, programas []string, salonRegex *regexp.Regexp, logger *slog.Logger) *Extractor {
	return &Extractor{
		source:     source,
		programas:  programas,
		salonRegex: salonRegex,
		logger:     logger,
	}
}

// Extract processes the given documents and returns the staging records.
// Unreadable files and unrecognized filenames are logged and skipped; the run
// fails only when no records were produced at all.
func (e *Extractor) Extract(paths []string) (*Result, error) {
	result := &Result{
		Records: make([]staging.Record, 0, 256),
	}

	for _, path := range paths {
		programa, err := DetectPrograma(filepath.Base(path), e.programas)
		if err != nil {
			e.logger.Error("skipping file with unrecognized program",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			result.FilesFailed++
			continue
		}

		e.logger.Info("processing document",
			slog.String("file", path),
			slog.String("programa", programa),
		)

		tables, err := e.source.Tables(path)
		if err != nil {
			e.logger.Error("failed to read document",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
			result.FilesFailed++
			continue
		}

		for _, table := range tables {
			e.parseTable(path, table, programa, result)
		}
	}

	if len(result.Records) == 0 {
		return nil, ErrNoRecords
	}

	e.logger.Info("extraction finished",
		slog.Int("records", len(result.Records)),
		slog.Int("rows_total", result.TotalRows),
		slog.Int("rows_skipped", result.SkippedRows),
		slog.Int("dropped_salon", result.DroppedSalon),
	)
	return result, nil
}

// parseTable walks one table and appends its staging records to the result.
// Continuation rows repair only the most recently emitted record of the same
// table; an orphan continuation is a data error.
func (e *Extractor) parseTable(file string, table Table, programa string, result *Result) {
	var records []staging.Record

	for _, rawRow := range table.Rows {
		row := normalizeRow(rawRow)
		if allEmpty(row) {
			continue
		}
		result.TotalRows++

		switch {
		case numeric.MatchString(row[0]) && len(row) >= headerMinCells:
			records = append(records, staging.Record{
				NRC:      row[0],
				Clave:    row[1],
				Materia:  row[2],
				Seccion:  row[3],
				Dias:     strings.ReplaceAll(row[4], "/", ""),
				Hora:     strings.ReplaceAll(row[5], ":", ""),
				Profesor: normalizer.SafeTitle(row[6]),
				Salon:    row[7],
				Programa: programa,
			})
			result.ParsedRows++

		case row[0] == "" && len(row) >= continuationMinCells:
			extraProf := row[6]
			if len(records) == 0 {
				rowErr := RowError{File: file, Row: row, Message: "co-instructor row without a class entry"}
				result.Errors = append(result.Errors, rowErr)
				e.logger.Error("co-instructor row without a class entry",
					slog.String("file", file),
					slog.Any("row", row),
				)
				continue
			}
			current := &records[len(records)-1]
			current.Profesor = normalizer.SafeTitle(current.Profesor + " " + extraProf)
			result.ParsedRows++

		default:
			// Section banners, page headers and ruled separators all land
			// here; malformed source tables are expected.
			result.SkippedRows++
			e.logger.Debug("skipping row with unexpected shape",
				slog.String("file", file),
				slog.Any("row", row),
			)
		}
	}

	for _, record := range records {
		if !normalizer.ValidSalon(record.Salon, e.salonRegex) {
			result.DroppedSalon++
			e.logger.Info("dropping record with invalid classroom",
				slog.String("file", file),
				slog.String("salon", record.Salon),
				slog.String("nrc", record.NRC),
			)
			continue
		}
		result.Records = append(result.Records, record)
	}
}

// DetectPrograma infers the academic program code from a PDF filename, e.g.
// "PA_OTOÑO_2025_SEMESTRAL_ITI.pdf" => "ITI".
func DetectPrograma(fileName string, programas []string) (string, error) {
	upper := strings.ToUpper(fileName)
	for _, code := range programas {
		if strings.Contains(upper, "_"+code+".PDF") {
			return code, nil
		}
	}
	return "", fmt.Errorf("cannot infer program from file name %q", fileName)
}

func normalizeRow(row []string) []string {
	normalized := make([]string, len(row))
	for i, cell := range row {
		normalized[i] = normalizer.CollapseSpaces(cell)
	}
	return normalized
}

func allEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
