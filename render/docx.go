package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/teranos/xalq/errors"
)

var (
	// <w:p>, <w:p attr="...">, <w:p/> and </w:p>; not <w:pPr>
	paragraphTag = regexp.MustCompile(`<w:p(?:\s[^>]*)?/?>|</w:p>`)
	// <w:t> and <w:t attr="...">; not the empty <w:t .../>
	textElement  = regexp.MustCompile(`(?s)<w:t(?:\s(?:[^>]*[^/>])?)?>(.*?)</w:t>`)
	partName     = regexp.MustCompile(`^word/(document|header\d*|footer\d*)\.xml$`)
)

// substituteDocx copies a .docx archive, replacing placeholders in the main
// document, headers and footers. Other parts are copied byte for byte.
func substituteDocx(template []byte, replacements map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, errors.Wrap(err, "template is not a valid .docx archive")
	}

	replacer := newTokenReplacer(replacements)

	var output bytes.Buffer
	writer := zip.NewWriter(&output)

	for _, file := range reader.File {
		name := normalizeZipName(file.Name)
		content, err := readZipFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}

		if partName.MatchString(name) {
			content = []byte(substituteParagraphs(string(content), replacer))
		}

		if err := writeZipFile(writer, file, name, content); err != nil {
			return nil, errors.Wrapf(err, "write %s", name)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "finalize archive")
	}
	return output.Bytes(), nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipFile(writer *zip.Writer, source *zip.File, name string, content []byte) error {
	dst, err := writer.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   source.Method,
		Modified: source.Modified,
	})
	if err != nil {
		return err
	}
	_, err = dst.Write(content)
	return err
}

func normalizeZipName(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}

// tokenReplacer replaces {{TOKEN}} occurrences; unknown tokens survive
type tokenReplacer struct {
	replacer *strings.Replacer
}

func newTokenReplacer(replacements map[string]string) *tokenReplacer {
	pairs := make([]string, 0, len(replacements)*2)
	for token, value := range replacements {
		pairs = append(pairs, token, value)
	}
	return &tokenReplacer{replacer: strings.NewReplacer(pairs...)}
}

// substituteParagraphs rewrites every leaf paragraph whose concatenated run
// text contains a token. Paragraphs that hold other paragraphs (text boxes)
// are left to their inner paragraphs.
func substituteParagraphs(xmlText string, r *tokenReplacer) string {
	type span struct{ start, end int }

	var leaves []span
	type open struct {
		start    int
		hasChild bool
	}
	var stack []open

	for _, loc := range paragraphTag.FindAllStringIndex(xmlText, -1) {
		tag := xmlText[loc[0]:loc[1]]
		switch {
		case tag == "</w:p>":
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !top.hasChild {
				leaves = append(leaves, span{top.start, loc[1]})
			}
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
		case strings.HasSuffix(tag, "/>"):
			// empty paragraph
		default:
			stack = append(stack, open{start: loc[0]})
		}
	}

	if len(leaves) == 0 {
		return xmlText
	}

	var b strings.Builder
	b.Grow(len(xmlText))
	last := 0
	for _, sp := range leaves {
		b.WriteString(xmlText[last:sp.start])
		b.WriteString(substituteParagraph(xmlText[sp.start:sp.end], r))
		last = sp.end
	}
	b.WriteString(xmlText[last:])
	return b.String()
}

// substituteParagraph puts the replaced text into the first w:t of the
// paragraph and blanks the rest, so tokens split across runs still match.
func substituteParagraph(para string, r *tokenReplacer) string {
	matches := textElement.FindAllStringSubmatchIndex(para, -1)
	if len(matches) == 0 {
		return para
	}

	var text strings.Builder
	for _, m := range matches {
		text.WriteString(html.UnescapeString(para[m[2]:m[3]]))
	}
	original := text.String()
	if !strings.Contains(original, "{{") {
		return para
	}

	replaced := r.replacer.Replace(original)
	if replaced == original {
		return para
	}

	var b strings.Builder
	last := 0
	for i, m := range matches {
		b.WriteString(para[last:m[0]])
		if i == 0 {
			b.WriteString(textWithBreaks(replaced))
		} else {
			b.WriteString(`<w:t></w:t>`)
		}
		last = m[1]
	}
	b.WriteString(para[last:])
	return b.String()
}

// textWithBreaks renders s as w:t elements separated by line breaks
func textWithBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`<w:br/>`)
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		_ = xml.EscapeText(&b, []byte(line))
		b.WriteString(`</w:t>`)
	}
	return b.String()
}
