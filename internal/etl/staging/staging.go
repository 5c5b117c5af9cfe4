// Package staging defines the records exchanged between the ETL stages and
// their CSV file representations. The staging CSV is the extractor→transformer
// boundary; the fact-ready CSV is the transformer→loader boundary. Both use a
// fixed column set and must round-trip losslessly.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// ErrEmptyFile indicates an intermediate CSV exists but contains no rows.
// An empty artifact is never valid input for the next stage.
var ErrEmptyFile = errors.New("staging file contains no records")

// StagingColumns is the exact header of staging.csv, in order.
var StagingColumns = []string{
	"nrc", "clave", "materia", "seccion", "dias", "hora", "profesor", "salon", "programa",
}

// FactReadyColumns is the exact header of fact_ready.csv, in order.
var FactReadyColumns = []string{
	"nrc", "clave", "materia", "seccion", "profesor", "programa",
	"edificio", "aula", "dia_codigo", "dia_orden", "inicio", "fin", "minutos", "cruzada",
}

// Record is one raw class entry as extracted from a PDF table. Day codes and
// the time range are still combined and unvalidated; one record may represent
// several calendar days.
type Record struct {
	NRC      string `csv:"nrc"`
	Clave    string `csv:"clave"`
	Materia  string `csv:"materia"`
	Seccion  string `csv:"seccion"`
	Dias     string `csv:"dias"`
	Hora     string `csv:"hora"`
	Profesor string `csv:"profesor"`
	Salon    string `csv:"salon"`
	Programa string `csv:"programa"`
}

// FactReady is one class meeting on one specific day, normalized and merged,
// ready for warehouse insertion.
type FactReady struct {
	NRC       int    `csv:"nrc"`
	Clave     string `csv:"clave"`
	Materia   string `csv:"materia"`
	Seccion   string `csv:"seccion"`
	Profesor  string `csv:"profesor"`
	Programa  string `csv:"programa"`
	Edificio  string `csv:"edificio"`
	Aula      string `csv:"aula"`
	DiaCodigo string `csv:"dia_codigo"`
	DiaOrden  int    `csv:"dia_orden"`
	Inicio    string `csv:"inicio"` // HH:MM:SS
	Fin       string `csv:"fin"`    // HH:MM:SS
	Minutos   int    `csv:"minutos"`
	Cruzada   bool   `csv:"cruzada"`
}

// WriteRecords writes the staging CSV, creating parent directories as needed.
func WriteRecords(path string, records []Record) error {
	return writeCSV(path, &records)
}

// ReadRecords loads the staging CSV. A missing or empty file is an error:
// the transformer must never run on absent input.
func ReadRecords(path string) ([]Record, error) {
	var records []Record
	if err := readCSV(path, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return records, nil
}

// WriteFactReady writes the fact-ready CSV, creating parent directories as needed.
func WriteFactReady(path string, records []FactReady) error {
	return writeCSV(path, &records)
}

// ReadFactReady loads the fact-ready CSV. A missing or empty file is an error.
func ReadFactReady(path string) ([]FactReady, error) {
	var records []FactReady
	if err := readCSV(path, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return records, nil
}

func writeCSV(path string, records interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func readCSV(path string, records interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return fmt.Errorf("%s: %w", path, ErrEmptyFile)
		}
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
