package report

import (
	"regexp"
	"strings"
	"sync"
)

// FallbackThreshold is the number of strictly delimited sections below
// which heading-based parsing kicks in
const FallbackThreshold = 3

// Parser extracts Sections from model text
type Parser struct {
	sections  []string
	headers   HeaderTable
	threshold int

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// Option configures a Parser
type Option func(*Parser)

// WithHeaderTable replaces HeaderTableV1 for the fallback pass
func WithHeaderTable(table HeaderTable) Option {
	return func(p *Parser) { p.headers = table }
}

// WithSections replaces SectionsV1
func WithSections(names []string) Option {
	return func(p *Parser) { p.sections = names }
}

// NewParser creates a parser over SectionsV1 and HeaderTableV1
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		sections:  SectionsV1,
		headers:   HeaderTableV1,
		threshold: FallbackThreshold,
		patterns:  make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse extracts sections with the default parser. It never fails.
func Parse(text string) Sections {
	return defaultParser.Parse(text)
}

// Parse extracts every configured section from text. Missing sections are "".
func (p *Parser) Parse(text string) Sections {
	out := NewSections(p.sections)

	for _, name := range p.sections {
		if m := p.pattern(name).FindStringSubmatch(text); m != nil {
			out[name] = strings.TrimSpace(m[1])
		}
	}

	if out.Found() >= p.threshold {
		return out
	}

	// Strict hits are kept; headings only fill what is still empty
	for name, body := range p.parseHeadings(text) {
		if existing, ok := out[name]; ok && existing == "" {
			out[name] = body
		}
	}
	return out
}

func (p *Parser) pattern(name string) *regexp.Regexp {
	p.mu.Lock()
	defer p.mu.Unlock()
	re, ok := p.patterns[name]
	if !ok {
		q := regexp.QuoteMeta(name)
		re = regexp.MustCompile(`(?is)\[` + q + `\](.*?)\[/` + q + `\]`)
		p.patterns[name] = re
	}
	return re
}

// parseHeadings assigns lines to the most recent recognized heading.
// Lines before the first heading are discarded.
func (p *Parser) parseHeadings(text string) Sections {
	clean := strings.NewReplacer("*", "", "#", "").Replace(text)

	bodies := make(map[string][]string)
	var order []string
	current := ""

	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimRight(line, "\r")
		if section := p.headers.match(line); section != "" {
			current = section
			if _, seen := bodies[section]; !seen {
				bodies[section] = nil
				order = append(order, section)
			}
			continue
		}
		if current != "" {
			bodies[current] = append(bodies[current], line)
		}
	}

	out := make(Sections, len(order))
	for _, section := range order {
		out[section] = strings.TrimSpace(strings.Join(bodies[section], "\n"))
	}
	return out
}
