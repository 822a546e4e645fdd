package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HeaderMapping maps a heading phrase to a canonical section
type HeaderMapping struct {
	Phrase  string
	Section string
}

// HeaderTable is an ordered list of heading phrases. The first phrase
// contained in a line wins.
type HeaderTable []HeaderMapping

// HeaderTableV1 recognizes the Portuguese headings the prompts ask for
var HeaderTableV1 = HeaderTable{
	{"RESUMO EXECUTIVO", "RESUMO_EXECUTIVO"},
	{"DIAGNOSTICO", "DIAGNOSTICO"},
	{"LACUNAS", "LACUNAS"},
	{"CLASSIFICACAO", "CLASSIFICACAO"},
	{"ESTRUTURA TO BE", "ESTRUTURA_TO_BE"},
	{"MATRIZ DE METRICAS", "MATRIZ_DE_METRICAS"},
	{"ARQUITETURA CONCEITUAL", "ARQUITETURA_CONCEITUAL_DE_DADOS"},
	{"PERGUNTAS DECISORIAS", "PERGUNTAS_DECISORIAS"},
	{"KPIS ASSOCIADOS", "KPIS_ASSOCIADOS"},
	{"VISUALIZACAO CONCEITUAL", "VISUALIZACAO_CONCEITUAL"},
	{"RISCOS ATUAIS", "RISCOS_ATUAIS"},
	{"RISCOS SE NAO", "RISCOS_SE_NAO_IMPLEMENTAR"},
	{"OBSERVACOES", "OBSERVACOES_XALQ"},
	{"PROXIMOS PASSOS", "PROXIMOS_PASSOS"},
}

// maxHeaderRunes excludes body sentences that merely mention a heading
const maxHeaderRunes = 50

// match returns the section for line, or "" if line is not a heading
func (t HeaderTable) match(line string) string {
	folded := foldHeader(line)
	if folded == "" || len([]rune(folded)) >= maxHeaderRunes {
		return ""
	}
	for _, m := range t {
		if strings.Contains(folded, foldHeader(m.Phrase)) {
			return m.Section
		}
	}
	return ""
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldHeader uppercases, removes accents and turns punctuation into spaces:
// "## 5. Estrutura To-Be:" becomes "5 ESTRUTURA TO BE".
func foldHeader(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToUpper(folded) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
