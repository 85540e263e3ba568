package web

import (
	"html"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for HTML-to-text conversion.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)[^>]*>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// isHTMLContent decides whether the response should go through HTML
// stripping. An absent Content-Type header falls back to sniffing the
// body for an html or doctype tag.
func isHTMLContent(contentType, body string) bool {
	switch mediaType(contentType) {
	case "text/html", "application/xhtml+xml":
		return true
	case "":
	default:
		return false
	}

	head := strings.ToLower(body[:min(len(body), 1024)])
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// isTextContent reports whether the response body can be indexed as-is.
func isTextContent(contentType string) bool {
	return strings.HasPrefix(mediaType(contentType), "text/")
}

// mediaType extracts the bare media type, dropping charset parameters.
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

// extractTitle pulls the page title from the <title> tag, falling back
// to a name derived from the URL.
func extractTitle(content, target string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) > 1 {
		title := strings.TrimSpace(matches[1])
		title = html.UnescapeString(title)
		if title != "" {
			return title
		}
	}
	return titleFromTarget(target)
}

// titleFromTarget derives a readable title from the URL path, or the
// host when the path carries no name.
func titleFromTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}

	name := path.Base(u.Path)
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.TrimSpace(name)

	if name == "" || name == "/" || name == "." {
		return u.Host
	}
	return name
}

// stripHTML removes HTML markup and extracts readable text content.
func stripHTML(content string) string {
	// Remove script, style, noscript, head, and svg subtrees entirely
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")

	content = htmlComments.ReplaceAllString(content, "")

	// Block boundaries become newlines so adjacent elements don't run
	// together
	content = openBlockElements.ReplaceAllString(content, "\n")
	content = blockElements.ReplaceAllString(content, "\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n")

	// Strip all remaining tags
	content = allTags.ReplaceAllString(content, "")

	// Decode HTML entities
	content = html.UnescapeString(content)

	// Collapse runs of spaces but preserve newlines
	content = multiSpaces.ReplaceAllString(content, " ")
	content = multiNewlines.ReplaceAllString(content, "\n\n")

	// Trim each line and drop empty ones
	lines := strings.Split(content, "\n")
	var result []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}
