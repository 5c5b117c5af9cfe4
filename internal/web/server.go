// Package web is the thin HTML front end over the warehouse queries and the
// pipeline trigger.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avaldezp/olap-horarios/internal/etl"
	"github.com/avaldezp/olap-horarios/internal/etl/staging"
	"github.com/avaldezp/olap-horarios/internal/warehouse"
)

//go:embed templates/*.html
var templateFS embed.FS

// runTimeout bounds a pipeline run triggered from the form.
const runTimeout = 10 * time.Minute

// Pipeline is what the run endpoint needs from the ETL runner.
type Pipeline interface {
	Run(ctx context.Context) (*etl.Report, error)
}

// Server serves the query form, the table previews and the run trigger.
type Server struct {
	router *mux.Router
	repo   *warehouse.Repository
	runner Pipeline
	tmpl   *template.Template
	logger *slog.Logger

	stagingCSV   string
	factReadyCSV string
}

// New builds the server and its routes.
func New(repo *warehouse.Repository, runner Pipeline, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		router: mux.NewRouter(),
		repo:   repo,
		runner: runner,
		tmpl:   tmpl,
		logger: logger,
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/horario", s.handleHorario).Methods("GET")
	s.router.HandleFunc("/materia", s.handleMateria).Methods("GET")
	s.router.HandleFunc("/edificio", s.handleEdificio).Methods("GET")
	s.router.HandleFunc("/run", s.handleRun).Methods("POST")
	s.router.HandleFunc("/preview/{target}", s.handlePreview).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return s, nil
}

// WithCSVPreviews enables the staging and fact_ready preview targets, backed
// by the pipeline's CSV artifacts.
func (s *Server) WithCSVPreviews(stagingCSV, factReadyCSV string) *Server {
	s.stagingCSV = stagingCSV
	s.factReadyCSV = factReadyCSV
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// indexData feeds the single-page query form.
type indexData struct {
	Docentes []string
	Materias []warehouse.Materia
	Espacios []string
	Horas    []string

	// set by the query handlers
	Titulo   string
	Horario  []warehouse.ClaseDocente
	Nombres  []string
	Mensaje  string
	Consulto bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data, err := s.baseData(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleHorario(w http.ResponseWriter, r *http.Request) {
	data, err := s.baseData(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	docente := r.URL.Query().Get("docente")
	clases, err := s.repo.HorarioDocente(r.Context(), docente)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	data.Consulto = true
	data.Titulo = fmt.Sprintf("Horario de %q", docente)
	data.Horario = clases
	if len(clases) == 0 {
		data.Mensaje = "Sin resultados."
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleMateria(w http.ResponseWriter, r *http.Request) {
	data, err := s.baseData(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	clave := r.URL.Query().Get("clave")
	texto := r.URL.Query().Get("texto")
	nombres, err := s.repo.DocentesPorMateria(r.Context(), clave, texto)
	if errors.Is(err, warehouse.ErrMissingFilter) {
		data.Consulto = true
		data.Mensaje = "Indica la clave o el nombre de la materia."
		s.render(w, r, "index.html", data)
		return
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	data.Consulto = true
	data.Titulo = "Docentes de la materia"
	data.Nombres = nombres
	if len(nombres) == 0 {
		data.Mensaje = "Sin resultados."
	}
	s.render(w, r, "index.html", data)
}

func (s *Server) handleEdificio(w http.ResponseWriter, r *http.Request) {
	data, err := s.baseData(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	edificio := r.URL.Query().Get("edificio")
	hora := r.URL.Query().Get("hora")
	usarSlots := r.URL.Query().Get("slots") == "1"

	nombres, err := s.repo.DocentesEnEdificio(r.Context(), edificio, hora, usarSlots)
	if err != nil {
		data.Consulto = true
		data.Mensaje = err.Error()
		s.render(w, r, "index.html", data)
		return
	}

	data.Consulto = true
	data.Titulo = fmt.Sprintf("Docentes en el edificio %s a las %s", edificio, hora)
	data.Nombres = nombres
	if len(nombres) == 0 {
		data.Mensaje = "Sin resultados."
	}
	s.render(w, r, "index.html", data)
}

// runData feeds the pipeline report page.
type runData struct {
	Report *etl.Report
	Error  string
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), runTimeout)
	defer cancel()

	report, err := s.runner.Run(ctx)
	data := runData{Report: report}
	if err != nil {
		s.logger.Error("pipeline run from web failed", slog.String("error", err.Error()))
		data.Error = err.Error()
		w.WriteHeader(http.StatusInternalServerError)
	}
	s.render(w, r, "run.html", data)
}

// previewData feeds the bounded table dump page.
type previewData struct {
	Titulo  string
	Headers []string
	Rows    [][]string
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]

	switch target {
	case "staging":
		if s.stagingCSV != "" {
			s.previewStagingCSV(w, r)
			return
		}
	case "fact_ready":
		if s.factReadyCSV != "" {
			s.previewFactReadyCSV(w, r)
			return
		}
	}

	title, headers, rows, err := s.repo.Preview(r.Context(), target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.render(w, r, "preview.html", previewData{Titulo: title, Headers: headers, Rows: rows})
}

// csvPreviewLimit caps the rows rendered from a CSV artifact.
const csvPreviewLimit = 50

func (s *Server) previewStagingCSV(w http.ResponseWriter, r *http.Request) {
	records, err := staging.ReadRecords(s.stagingCSV)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rows := make([][]string, 0, csvPreviewLimit)
	for _, rec := range records {
		if len(rows) == csvPreviewLimit {
			break
		}
		rows = append(rows, []string{
			rec.NRC, rec.Clave, rec.Materia, rec.Seccion, rec.Dias,
			rec.Hora, rec.Profesor, rec.Salon, rec.Programa,
		})
	}
	s.render(w, r, "preview.html", previewData{
		Titulo:  "Vista previa de staging.csv",
		Headers: staging.StagingColumns,
		Rows:    rows,
	})
}

func (s *Server) previewFactReadyCSV(w http.ResponseWriter, r *http.Request) {
	records, err := staging.ReadFactReady(s.factReadyCSV)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rows := make([][]string, 0, csvPreviewLimit)
	for _, rec := range records {
		if len(rows) == csvPreviewLimit {
			break
		}
		rows = append(rows, []string{
			strconv.Itoa(rec.NRC), rec.Clave, rec.Materia, rec.Seccion,
			rec.Profesor, rec.Programa, rec.Edificio, rec.Aula,
			rec.DiaCodigo, strconv.Itoa(rec.DiaOrden), rec.Inicio, rec.Fin,
			strconv.Itoa(rec.Minutos), strconv.FormatBool(rec.Cruzada),
		})
	}
	s.render(w, r, "preview.html", previewData{
		Titulo:  "Vista previa de fact_ready.csv",
		Headers: staging.FactReadyColumns,
		Rows:    rows,
	})
}

func (s *Server) baseData(ctx context.Context) (*indexData, error) {
	docentes, err := s.repo.ListDocentes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teachers: %w", err)
	}
	materias, err := s.repo.ListMaterias(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	espacios, err := s.repo.ListEspacios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	horas, err := s.repo.ListHoras(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list class times: %w", err)
	}
	return &indexData{Docentes: docentes, Materias: materias, Espacios: espacios, Horas: horas}, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("failed to render template",
			slog.String("template", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
