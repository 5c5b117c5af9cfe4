package extract

import (
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSalonRegex = regexp.MustCompile(`^[0-9A-Z]+/[0-9A-Z]+$`)

// fakeSource serves canned tables keyed by path.
type fakeSource struct {
	tables map[string][]Table
	err    error
}

func (f *fakeSource) Tables(path string) ([]Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[path], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExtractor(source TableSource) *Extractor {
	return New(source, []string{"ITI", "ICC", "LCC"}, testSalonRegex, testLogger())
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("parses header rows", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {{Rows: [][]string{
				{"12345", "MAT101", "CÁLCULO  DIFERENCIAL", "01", "L/M/V", "09:00-10:59", "JUAN PEREZ", "1CCO4/307"},
			}}},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)

		record := result.Records[0]
		assert.Equal(t, "12345", record.NRC)
		assert.Equal(t, "MAT101", record.Clave)
		assert.Equal(t, "CÁLCULO DIFERENCIAL", record.Materia)
		assert.Equal(t, "LMV", record.Dias, "slashes stripped from day codes")
		assert.Equal(t, "0900-1059", record.Hora, "colons stripped from time range")
		assert.Equal(t, "JUAN Perez", record.Profesor)
		assert.Equal(t, "1CCO4/307", record.Salon)
		assert.Equal(t, "ITI", record.Programa)
	})

	t.Run("continuation row appends co-instructor", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {{Rows: [][]string{
				{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "1CCO4/307"},
				{"", "", "", "", "", "", "GARCIA LOPEZ", ""},
			}}},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "JUAN Perez Garcia Lopez", result.Records[0].Profesor)
	})

	t.Run("orphan continuation row is a data error", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {
				{Rows: [][]string{
					{"", "", "", "", "", "", "GARCIA LOPEZ", ""},
					{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "1CCO4/307"},
				}},
			},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "co-instructor")
		// The orphan must not contaminate the later record.
		assert.Equal(t, "JUAN Perez", result.Records[0].Profesor)
	})

	t.Run("continuation scope does not cross tables", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {
				{Rows: [][]string{
					{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "1CCO4/307"},
				}},
				{Rows: [][]string{
					{"", "", "", "", "", "", "GARCIA LOPEZ", ""},
				}},
			},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "JUAN Perez", result.Records[0].Profesor)
	})

	t.Run("invalid classroom drops the record, siblings survive", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {{Rows: [][]string{
				{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "SALON MALO"},
				{"54321", "BD202", "BASES DE DATOS", "02", "AJ", "1100-1259", "ANA RUIZ", "2CCO1/101"},
			}}},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		require.Len(t, result.Records, 1)
		assert.Equal(t, "54321", result.Records[0].NRC)
		assert.Equal(t, 1, result.DroppedSalon)
	})

	t.Run("unrecognized rows are skipped silently", func(t *testing.T) {
		source := &fakeSource{tables: map[string][]Table{
			"horarios_ITI.pdf": {{Rows: [][]string{
				{"HORARIO DE CLASES OTOÑO 2025"},
				{"", "", ""},
				{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "1CCO4/307"},
			}}},
		}}

		result, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.NoError(t, err)
		assert.Len(t, result.Records, 1)
		assert.Equal(t, 1, result.SkippedRows)
		assert.Empty(t, result.Errors)
	})

	t.Run("unreadable file is skipped, run continues", func(t *testing.T) {
		good := &fakeSource{tables: map[string][]Table{
			"horarios_ICC.pdf": {{Rows: [][]string{
				{"12345", "MAT101", "CÁLCULO", "01", "LMV", "0900-1059", "JUAN PEREZ", "1CCO4/307"},
			}}},
		}}

		result, err := newTestExtractor(good).Extract([]string{"horarios_SIN_PROGRAMA.pdf", "horarios_ICC.pdf"})
		require.NoError(t, err)
		assert.Len(t, result.Records, 1)
		assert.Equal(t, 1, result.FilesFailed)
		assert.Equal(t, "ICC", result.Records[0].Programa)
	})

	t.Run("zero records is terminal", func(t *testing.T) {
		source := &fakeSource{err: errors.New("corrupt document")}

		_, err := newTestExtractor(source).Extract([]string{"horarios_ITI.pdf"})
		require.ErrorIs(t, err, ErrNoRecords)
	})
}

func TestDetectPrograma(t *testing.T) {
	programas := []string{"ITI", "ICC", "LCC"}

	tests := []struct {
		name     string
		fileName string
		expected string
		wantErr  bool
	}{
		{name: "iti", fileName: "PA_OTOÑO_2025_SEMESTRAL_ITI.pdf", expected: "ITI"},
		{name: "lowercase extension", fileName: "pa_otoño_2025_semestral_icc.pdf", expected: "ICC"},
		{name: "lcc", fileName: "PA_OTOÑO_2025_SEMESTRAL_LCC.PDF", expected: "LCC"},
		{name: "unknown", fileName: "PA_OTOÑO_2025_SEMESTRAL_XYZ.pdf", wantErr: true},
		{name: "code not suffixed", fileName: "ITI_PA_OTOÑO.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectPrograma(tt.fileName, programas)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
