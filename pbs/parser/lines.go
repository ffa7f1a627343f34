package parser

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// ErrParse is wrapped by all errors returned from parsers
var ErrParse = errors.New("parse error")

// attribute is a single key = value line of a status block
type attribute struct {
	line  int
	key   string // trimmed and lowercased
	value string // trimmed
}

// block is a single record of qstat -f like output: a header line
// followed by attribute lines
type block struct {
	line   int
	header string
	attrs  []attribute
}

// logicalLines normalizes line endings and joins continuation lines. The
// scheduler wraps long values onto the next line indented by a tab.
func logicalLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n\t", "")
	return strings.Split(text, "\n")
}

// splitBlocks splits text into blocks at each line matched by header. The
// first submatch of header is the block header. Attribute lines preceding
// the first header are skipped.
func splitBlocks(ctx context.Context, text string, header *regexp.Regexp) []block {
	var blocks []block
	var current *block
	for i, line := range logicalLines(text) {
		if m := header.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, block{line: i + 1, header: strings.TrimSpace(m[1])})
			current = &blocks[len(blocks)-1]
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := splitFirst(line, "=")
		if !ok {
			continue
		}
		if current == nil {
			slog.WarnContext(ctx, "attribute outside of a record: ignoring", "line", i+1, "key", key)
			continue
		}
		current.attrs = append(current.attrs, attribute{
			line:  i + 1,
			key:   strings.ToLower(strings.TrimSpace(key)),
			value: strings.TrimSpace(value),
		})
	}
	return blocks
}

// splitFirst splits source at the first occurrence of sep. Both parts
// must be non-empty, the second one may contain sep.
func splitFirst(source, sep string) (string, string, bool) {
	before, after, found := strings.Cut(source, sep)
	if !found || before == "" || after == "" {
		return "", "", false
	}
	return before, after, true
}

// atoi parses an integer attribute, malformed values are reported as -1
func atoi(ctx context.Context, a attribute) int {
	n, err := strconv.Atoi(a.value)
	if err != nil {
		slog.WarnContext(ctx, "malformed integer attribute", "line", a.line, "key", a.key, "value", a.value)
		return -1
	}
	return n
}

func atoi64(ctx context.Context, a attribute) int64 {
	n, err := strconv.ParseInt(a.value, 10, 64)
	if err != nil {
		slog.WarnContext(ctx, "malformed integer attribute", "line", a.line, "key", a.key, "value", a.value)
		return -1
	}
	return n
}

func atof(ctx context.Context, a attribute) float64 {
	f, err := strconv.ParseFloat(a.value, 64)
	if err != nil {
		slog.WarnContext(ctx, "malformed number attribute", "line", a.line, "key", a.key, "value", a.value)
		return -1
	}
	return f
}

// atob is true for "true" in any case, everything else is false
func atob(a attribute) bool {
	return strings.EqualFold(a.value, "true")
}

// bucket stores the attribute under its name without prefix, if the key
// starts with prefix
func bucket(m map[string]string, a attribute, prefix string) bool {
	name, ok := strings.CutPrefix(a.key, prefix)
	if !ok {
		return false
	}
	m[name] = a.value
	return true
}
