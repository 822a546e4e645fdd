// Package report extracts the named sections of a model answer.
//
// Answers are expected to wrap each section in [NAME]...[/NAME] markers.
// When too few markers are present the parser falls back to recognizing
// plain-text headings ("Resumo Executivo:", "## Diagnóstico").
package report

import "strings"

// SectionsV1 is the canonical section list shared by the parser, the
// document renderer ({{NAME}} placeholders) and prompt authors.
var SectionsV1 = []string{
	"RESUMO_EXECUTIVO",
	"DIAGNOSTICO",
	"LACUNAS",
	"CLASSIFICACAO",
	"ESTRUTURA_TO_BE",
	"MATRIZ_DE_METRICAS",
	"ARQUITETURA_CONCEITUAL_DE_DADOS",
	"PERGUNTAS_DECISORIAS",
	"KPIS_ASSOCIADOS",
	"VISUALIZACAO_CONCEITUAL",
	"RISCOS_ATUAIS",
	"RISCOS_SE_NAO_IMPLEMENTAR",
	"OBSERVACOES_XALQ",
	"PROXIMOS_PASSOS",
}

// Sections maps a canonical section name to its text. Parser output holds
// every canonical key; missing sections are "".
type Sections map[string]string

// NewSections returns Sections with every name set to ""
func NewSections(names []string) Sections {
	s := make(Sections, len(names))
	for _, name := range names {
		s[name] = ""
	}
	return s
}

// Found counts the non-empty sections
func (s Sections) Found() int {
	n := 0
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// Missing returns the empty sections in canonical order
func (s Sections) Missing() []string {
	var out []string
	for _, name := range SectionsV1 {
		if strings.TrimSpace(s[name]) == "" {
			out = append(out, name)
		}
	}
	return out
}
