package parser

import (
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/starford/tagshelf/internal/models"
)

var mdRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(highlighting.WithStyle("github")),
	),
	goldmark.WithParserOptions(gmparser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// ParseMarkdown reads YAML frontmatter into metadata and renders the body to
// a standalone HTML document carrying the same title and meta fields.
func ParseMarkdown(src []byte) (*Result, error) {
	fm, body := splitFrontmatter(src)
	md := frontmatterMetadata(fm)
	if md.Title == "" {
		md.Title = firstHeading(body)
	}

	var out bytes.Buffer
	if err := mdRenderer.Convert([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("parser: render markdown: %w", err)
	}
	return &Result{Metadata: md, HTML: wrapDocument(md, out.String())}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a closing delimiter, or with invalid YAML, the whole
// input is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func frontmatterMetadata(fm map[string]any) models.Metadata {
	var md models.Metadata
	for key, raw := range fm {
		name := strings.ToLower(key)
		switch name {
		case "title":
			md.Title = scalar(raw)
		case "created", "date":
			if md.Created == "" || name == "created" {
				md.Created = scalar(raw)
			}
		case "modified", "updated":
			if md.Modified == "" || name == "modified" {
				md.Modified = scalar(raw)
			}
		case "tags":
			md.Tags = joinTags(raw)
		case "id", "uniqueid":
			md.UniqueID = scalar(raw)
		case "last device", "lastdevice":
			md.LastDevice = scalar(raw)
		default:
			s := scalar(raw)
			if s == "" {
				continue
			}
			if md.Extra == nil {
				md.Extra = make(map[string]string)
			}
			md.Extra[name] = s
		}
	}
	return md
}

// joinTags accepts a YAML list or a preformatted "a/b, c" string.
func joinTags(raw any) string {
	switch v := raw.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(scalar(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return scalar(raw)
	}
}

// scalar renders a frontmatter value as a string; maps and lists yield "".
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case int, int64, float64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func wrapDocument(md models.Metadata, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(md.Title))
	writeMeta := func(name, content string) {
		if content == "" {
			return
		}
		fmt.Fprintf(&b, "<meta name=\"%s\" content=\"%s\">\n", html.EscapeString(name), html.EscapeString(content))
	}
	writeMeta(metaCreated, md.Created)
	writeMeta(metaModified, md.Modified)
	writeMeta(metaTags, md.Tags)
	writeMeta(metaUniqueID, md.UniqueID)
	writeMeta(metaLastDevice, md.LastDevice)
	extra := make([]string, 0, len(md.Extra))
	for k := range md.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		writeMeta(k, md.Extra[k])
	}
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
