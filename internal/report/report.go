// Package report renders the tabular pipeline results into one static HTML
// document plus CSV and Markdown side files.
package report

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"path/filepath"
	"strings"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/fsutil"
	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/plots"
)

// Output file names.
const (
	HTMLFile        = "comparison_result.html"
	MarkdownFile    = "comparison_result.md"
	BestModelCSV    = "best_model.csv"
	ComparisonCSV   = "comparison_results.csv"
	TestResultsCSV  = "test_results.csv"
	templateName    = "report.html"
	pngDataURIStart = "data:image/png;base64,"
)

//go:embed report.html
var templates embed.FS

// hiddenSetup are setup parameters left out of the report's setup table.
var hiddenSetup = map[string]bool{
	"html":           true,
	"log_experiment": true,
	"system_log":     true,
	"test_data":      true,
}

// Artifact collects everything the report shows. It is filled by the
// pipeline stages and rendered once.
type Artifact struct {
	CrossValidation bool
	ModelName       string
	Results         *frame.Table
	TestResults     *frame.Table
	BestParams      []automl.Param
	SetupParams     []automl.SetupParam
	Plots           []plots.Plot
	FeatureHTML     string
	ExplainerHTML   string
	TreeImages      [][]byte
}

// HasExplainer reports whether the explainer tab is rendered.
func (a *Artifact) HasExplainer() bool { return a.ExplainerHTML != "" }

// BestParamsTable lists the model hyperparameters.
func (a *Artifact) BestParamsTable() *frame.Table {
	keys := make([]string, len(a.BestParams))
	vals := make([]string, len(a.BestParams))
	for i, p := range a.BestParams {
		keys[i], vals[i] = p.Name, p.Value
	}
	return frame.Pairs(keys, vals)
}

// SetupTable lists the setup parameters shown in the report.
func (a *Artifact) SetupTable() *frame.Table {
	var keys, vals []string
	for _, p := range a.SetupParams {
		if hiddenSetup[p.Key] {
			continue
		}
		keys = append(keys, p.Key)
		vals = append(vals, fmt.Sprint(p.Value))
	}
	return frame.Pairs(keys, vals)
}

type plotView struct {
	Name  string
	Title string
	Src   template.URL
}

type view struct {
	CrossValidation bool
	ModelName       string
	Results         template.HTML
	BestParams      template.HTML
	SetupParams     template.HTML
	TestResults     template.HTML
	Plots           []plotView
	Feature         template.HTML
	Explainer       template.HTML
	Trees           []template.URL
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func dataURI(png []byte) template.URL {
	return template.URL(pngDataURIStart + base64.StdEncoding.EncodeToString(png))
}

// Writer renders artifacts into an output directory.
type Writer struct {
	FS        fsutil.FileSystem
	OutputDir string
}

// NewWriter returns a writer on the OS filesystem.
func NewWriter(outputDir string) *Writer {
	return &Writer{FS: fsutil.OSFileSystem{}, OutputDir: outputDir}
}

func (w *Writer) path(name string) string { return filepath.Join(w.OutputDir, name) }

// Render builds the HTML document. Plot images must live under the output
// directory; they are read through the writer's filesystem and inlined.
func (w *Writer) Render(a *Artifact) ([]byte, error) {
	if a.Results == nil || a.TestResults == nil {
		return nil, fmt.Errorf("render report: missing results tables")
	}
	v := view{
		CrossValidation: a.CrossValidation,
		ModelName:       a.ModelName,
		Results:         template.HTML(a.Results.HTML("table", "sortable")),
		BestParams:      template.HTML(a.BestParamsTable().HTML("table", "sortable")),
		SetupParams:     template.HTML(a.SetupTable().HTML("table", "sortable")),
		TestResults:     template.HTML(a.TestResults.HTML()),
		Feature:         template.HTML(a.FeatureHTML),
		Explainer:       template.HTML(a.ExplainerHTML),
	}
	for _, p := range a.Plots {
		if err := fsutil.ValidateWithin(p.Path, w.OutputDir); err != nil {
			return nil, fmt.Errorf("plot %s: %w", p.Name, err)
		}
		png, err := w.FS.ReadFile(p.Path)
		if err != nil {
			return nil, fmt.Errorf("read plot %s: %w", p.Name, err)
		}
		v.Plots = append(v.Plots, plotView{Name: p.Name, Title: capitalize(p.Name), Src: dataURI(png)})
	}
	if a.HasExplainer() {
		for _, img := range a.TreeImages {
			if len(img) > 0 {
				v.Trees = append(v.Trees, dataURI(img))
			}
		}
	}

	tmpl, err := template.New(templateName).
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templates, templateName)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the report and writes the HTML, Markdown and CSV files.
func (w *Writer) Write(a *Artifact) error {
	if w.OutputDir == "" {
		return fmt.Errorf("write report: output directory not set")
	}
	if err := w.FS.MkdirAll(w.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := w.writeCSV(BestModelCSV, a.BestParamsTable(), false); err != nil {
		return err
	}
	if err := w.writeCSV(ComparisonCSV, a.Results, true); err != nil {
		return err
	}
	if err := w.writeCSV(TestResultsCSV, a.TestResults, true); err != nil {
		return err
	}

	doc, err := w.Render(a)
	if err != nil {
		return err
	}
	if err := w.FS.WriteFile(w.path(HTMLFile), doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", HTMLFile, err)
	}

	md, err := Markdown(a)
	if err != nil {
		monitoring.Warnf("markdown summary skipped: %v", err)
	} else if err := w.FS.WriteFile(w.path(MarkdownFile), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", MarkdownFile, err)
	}
	monitoring.Logf("report written to %s", w.path(HTMLFile))
	return nil
}

func (w *Writer) writeCSV(name string, t *frame.Table, withIndex bool) error {
	if t == nil {
		return fmt.Errorf("write %s: no table", name)
	}
	f, err := w.FS.Create(w.path(name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := t.WriteCSV(f, withIndex); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}
