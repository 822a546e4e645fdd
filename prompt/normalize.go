package prompt

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a prompt name for fuzzy matching: NFKD decomposition,
// combining marks and non-ASCII dropped, lowercased, and spaces, hyphens
// and underscores removed. "Operações_Digitais" and "operacoes-digitais"
// both become "operacoesdigitais".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		if r > unicode.MaxASCII {
			continue
		}
		switch r {
		case ' ', '-', '_':
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
