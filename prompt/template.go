package prompt

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Provenance records which strategy produced a template
type Provenance string

const (
	ProvenanceLocal        Provenance = "local"
	ProvenanceLegacyMapped Provenance = "legacy-mapped"
	ProvenanceRemote       Provenance = "remote"
)

// Template is a resolved prompt. Treat it as read-only: resolved templates
// are shared through the process cache.
type Template struct {
	Name       string // file name, including .md
	Text       string // body without frontmatter
	Provenance Provenance
	Metadata   Metadata
}

// Metadata is the optional YAML frontmatter of a prompt file
type Metadata struct {
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

const frontmatterDelim = "---"

// newTemplate splits optional frontmatter from content. Malformed
// frontmatter is left in the body so nothing the author wrote is lost.
func newTemplate(name, content string, provenance Provenance) *Template {
	meta, body := splitFrontmatter(content)
	return &Template{
		Name:       name,
		Text:       body,
		Provenance: provenance,
		Metadata:   meta,
	}
}

func splitFrontmatter(content string) (Metadata, string) {
	var meta Metadata

	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelim+"\n") {
		return meta, content
	}

	rest := normalized[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim)
	if end < 0 {
		return meta, content
	}

	header := rest[:end]
	body := rest[end+len(frontmatterDelim)+1:]
	// Drop the remainder of the closing delimiter line
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && strings.TrimSpace(body[:nl]) == "" {
		body = body[nl+1:]
	} else if strings.TrimSpace(body) == "" {
		body = ""
	} else {
		// "---" was the start of a longer line, not a delimiter
		return meta, content
	}

	if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
		return Metadata{}, content
	}
	return meta, strings.TrimLeft(body, "\n")
}
