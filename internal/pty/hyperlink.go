package pty

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// esc and bel are spelled out as constants rather than inline \x1b/\x07
// escapes so the regex literals below stay readable.
const (
	esc = "\x1b"
	bel = "\x07"
)

var (
	urlRe           = regexp.MustCompile(`(https?://|file://|mailto:)[^\s<>"'` + esc + `)\]]*[^\s<>"'` + esc + `).,:;!?]`)
	absPathRe       = regexp.MustCompile(`/[\w./_-]+\.\w+(?::\d+(?::\d+)?)?`)
	relPathDotSlash = regexp.MustCompile(`(?:\.\./|\./)([\w./_-]+)(?::\d+(?::\d+)?)?`)
	relPathDirFile  = regexp.MustCompile(`[\w-]+/[\w./_-]+\.\w+(?::\d+(?::\d+)?)?`)
	ansiEscapeRe    = regexp.MustCompile(esc + `(?:\[[0-9;]*[a-zA-Z]|\](?:[^;` + bel + esc + `]*;)*[^;` + bel + esc + `]*(?:` + bel + `|` + esc + `\\))`)
)

// HyperlinkDetector wraps URLs and on-disk file paths found in terminal
// output lines with OSC-8 hyperlink escapes (§4.10 OSC-8 annotation).
// Not safe for concurrent use: the PTY read loop that owns it is
// single-threaded by design.
type HyperlinkDetector struct {
	cwd       string
	fileCache map[string]bool
}

// NewHyperlinkDetector returns a detector that resolves relative paths
// against cwd.
func NewHyperlinkDetector(cwd string) *HyperlinkDetector {
	return &HyperlinkDetector{cwd: cwd, fileCache: make(map[string]bool)}
}

// EnhanceLine annotates line with OSC-8 hyperlinks, leaving it unchanged
// if it already contains one or has nothing link-like in it.
func (d *HyperlinkDetector) EnhanceLine(line string) string {
	if strings.Contains(line, esc+"]8;") {
		return line
	}
	if !strings.Contains(line, "://") && !strings.Contains(line, "/") &&
		!strings.Contains(line, ".") && !strings.Contains(line, "mailto:") {
		return line
	}

	var b strings.Builder
	b.Grow(len(line) + 128)
	last := 0
	for _, m := range ansiEscapeRe.FindAllStringIndex(line, -1) {
		if m[0] > last {
			b.WriteString(d.enhanceText(line[last:m[0]]))
		}
		b.WriteString(line[m[0]:m[1]])
		last = m[1]
	}
	if last < len(line) {
		b.WriteString(d.enhanceText(line[last:]))
	}
	return b.String()
}

type span struct {
	start, end int
	replace    string
}

// enhanceText annotates a text segment known to contain no ANSI escapes,
// applying the §4.10 precedence and non-overlap rule.
func (d *HyperlinkDetector) enhanceText(text string) string {
	var spans []span

	for _, m := range urlRe.FindAllStringIndex(text, -1) {
		url := text[m[0]:m[1]]
		spans = append(spans, span{m[0], m[1], wrapOSC8(url, url)})
	}

	for _, m := range absPathRe.FindAllStringIndex(text, -1) {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		pathStr := text[m[0]:m[1]]
		filePart := firstSegment(pathStr)
		if d.checkFileExists(filePart) {
			spans = append(spans, span{m[0], m[1], wrapOSC8(filePathToURI(pathStr, d.cwd), pathStr)})
		}
	}

	for _, m := range relPathDotSlash.FindAllStringIndex(text, -1) {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		pathStr := text[m[0]:m[1]]
		filePart := firstSegment(pathStr)
		resolved := filepath.Join(d.cwd, filePart)
		if d.checkFileExists(resolved) {
			spans = append(spans, span{m[0], m[1], wrapOSC8(filePathToURI(pathStr, d.cwd), pathStr)})
		}
	}

	for _, m := range relPathDirFile.FindAllStringIndex(text, -1) {
		if overlaps(spans, m[0], m[1]) {
			continue
		}
		pathStr := text[m[0]:m[1]]
		filePart := firstSegment(pathStr)
		if d.checkFileExists(filePart) {
			spans = append(spans, span{m[0], m[1], wrapOSC8(filePathToURI(pathStr, d.cwd), pathStr)})
		}
	}

	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	b.Grow(len(text) + len(spans)*40)
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.WriteString(text[last:s.start])
		b.WriteString(s.replace)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	if idx := strings.IndexByte(path, ':'); idx >= 0 {
		return path[:idx]
	}
	return path
}

func wrapOSC8(uri, display string) string {
	return esc + "]8;;" + uri + bel + display + esc + "]8;;" + bel
}

// filePathToURI converts path (possibly carrying a :line:col suffix) to a
// file:// URI for the portion before the first ':'.
func filePathToURI(path, cwd string) string {
	filePart := firstSegment(path)
	abs := filePart
	if !filepath.IsAbs(filePart) {
		abs = filepath.Join(cwd, filePart)
	}
	return "file://" + abs
}

// checkFileExists reports whether path (absolute, or relative to cwd)
// exists on disk, caching results per process (§4.10 step 2).
func (d *HyperlinkDetector) checkFileExists(path string) bool {
	if cached, ok := d.fileCache[path]; ok {
		return cached
	}
	abs := path
	if !filepath.IsAbs(path) {
		abs = filepath.Join(d.cwd, path)
	}
	_, err := os.Stat(abs)
	exists := err == nil
	d.fileCache[path] = exists
	return exists
}
