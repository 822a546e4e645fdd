// Package render writes a report document by filling {{TOKEN}} placeholders
// of a .docx template with the parsed report sections.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
	"github.com/teranos/xalq/report"
)

// maxNameAttempts bounds the numeric suffix search for a free file name
const maxNameAttempts = 1000

// Metadata fills the non-section placeholders and the output file name
type Metadata struct {
	AnalysisType string    // {{tipo_agente}}
	Model        string    // {{modelo_gemini}}, {{modelo}}
	RowID        string    // {{empresa}}
	RowPrefix    string    // file name prefix
	Time         time.Time // {{timestamp}} and the file name suffix
}

// Renderer writes reports into an output directory
type Renderer struct {
	outputDir string
	sections  []string
	logger    *zap.SugaredLogger
}

// Option configures a Renderer
type Option func(*Renderer)

// WithSections replaces report.SectionsV1 as the placeholder set
func WithSections(names []string) Option {
	return func(r *Renderer) { r.sections = names }
}

// New creates a renderer writing into outputDir
func New(outputDir string, opts ...Option) *Renderer {
	r := &Renderer{
		outputDir: outputDir,
		sections:  report.SectionsV1,
		logger:    logger.ComponentLogger("render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timestamp formats t as 20060102_150405_000000 (microseconds)
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405") + fmt.Sprintf("_%06d", t.Nanosecond()/1000)
}

// Placeholders returns the token → value map for one report
func (r *Renderer) Placeholders(sections report.Sections, meta Metadata) map[string]string {
	m := make(map[string]string, len(r.sections)+5)
	for _, name := range r.sections {
		m["{{"+name+"}}"] = sections[name]
	}
	m["{{tipo_agente}}"] = meta.AnalysisType
	m["{{modelo_gemini}}"] = meta.Model
	m["{{modelo}}"] = meta.Model
	m["{{timestamp}}"] = Timestamp(meta.Time)
	m["{{empresa}}"] = meta.RowID
	return m
}

// FileName is the report name before collision handling
func FileName(meta Metadata) string {
	return Sanitize(meta.RowPrefix) + "_" + Sanitize(meta.Model) + "_report_" + Timestamp(meta.Time) + ".docx"
}

// Render fills templatePath and writes the result into the output directory.
// It returns the written path. The template file is never modified and an
// existing report is never overwritten.
func (r *Renderer) Render(sections report.Sections, meta Metadata, templatePath string) (string, error) {
	if meta.Time.IsZero() {
		meta.Time = time.Now()
	}

	template, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.WithHint(
				errors.Wrapf(errors.ErrTemplateMissing, "%s", templatePath),
				"set paths.template in am.toml or place template.docx under templates/",
			)
		}
		return "", errors.Mark(errors.Wrapf(err, "read template %s", templatePath), errors.ErrRender)
	}

	doc, err := substituteDocx(template, r.Placeholders(sections, meta))
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "fill template %s", templatePath), errors.ErrRender)
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", errors.Mark(errors.Wrapf(err, "create output directory %s", r.outputDir), errors.ErrRender)
	}

	path, err := r.writeExclusive(FileName(meta), doc)
	if err != nil {
		return "", errors.Mark(err, errors.ErrRender)
	}

	r.logger.Debugw("Report written",
		logger.FieldPath, path,
		logger.FieldSize, len(doc),
		logger.FieldModel, meta.Model,
	)
	return path, nil
}

// writeExclusive creates name (or name_N) with O_EXCL and writes data
func (r *Renderer) writeExclusive(name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	for i := 0; i < maxNameAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		path := filepath.Join(r.outputDir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "create %s", path)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", errors.Wrapf(err, "write %s", path)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", errors.Wrapf(err, "close %s", path)
		}
		return path, nil
	}
	return "", errors.Newf("no free file name for %s after %d attempts", name, maxNameAttempts)
}
