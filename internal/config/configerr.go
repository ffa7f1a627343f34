package config

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// CueErrorDetail is a single validation problem of a configuration file
type CueErrorDetail struct {
	Path    string // exporter.listen
	Code    string // unknown_field | missing_required | conflicting_values | invalid_enum | type_mismatch | validation_error
	Message string
	Pos     CueErrorPosition
	Raw     string
}

type CueErrorPosition struct {
	Filename string
	Line     int
	Column   int
}

func (c CueErrorDetail) Attr(name string) slog.Attr {
	return slog.GroupAttrs(
		name,
		slog.String("code", c.Code),
		slog.String("path", c.Path),
		slog.String("message", c.Message),
		slog.String("file", c.Pos.Filename),
		slog.Int("line", c.Pos.Line),
		slog.Int("column", c.Pos.Column),
	)
}

var (
	reIncomplete  = regexp.MustCompile(`(?i)incomplete value`)
	reNotAllowed  = regexp.MustCompile(`(?i)not allowed|unknown field`)
	reConflict    = regexp.MustCompile(`(?i)conflicting values|cannot unify|incompatible|empty disjunction`)
	reExpectedGot = regexp.MustCompile(`(?i)expected .* got .*`)
	reEnum        = regexp.MustCompile(`(?i)must be one of|expected one of`)
)

// CueErrDetails flattens an error returned by LoadConfig into one detail
// per position in the configuration file. Errors not coming from CUE
// result in an empty slice.
func CueErrDetails(err error) []CueErrorDetail {
	if err == nil {
		return nil
	}

	seen := make(map[CueErrorPosition]struct{})
	var out []CueErrorDetail
	for _, e := range cueerrors.Errors(err) {
		pos := position(e)
		if pos.Filename == "" {
			continue
		}
		if _, ok := seen[pos]; ok {
			continue
		}
		seen[pos] = struct{}{}

		format, args := e.Msg()
		raw := fmt.Sprintf(format, args...)
		path := normalizePath(e.Path())
		code, msg := classify(raw, path)

		if values, dflt := enumStrings(lookup(path)); len(values) > 1 && (code == "conflicting_values" || code == "invalid_enum") {
			code = "invalid_enum"
			msg += fmt.Sprintf(": possible values (%s)", strings.Join(values, ","))
			if dflt != "" {
				msg += fmt.Sprintf(" (default %s)", dflt)
			}
		}

		out = append(out, CueErrorDetail{
			Path:    path,
			Code:    code,
			Message: msg,
			Pos:     pos,
			Raw:     raw,
		})
	}
	return out
}

// enumStrings returns the string alternatives of a disjunction and its
// default
func enumStrings(v cue.Value) (values []string, def string) {
	if !v.Exists() {
		return nil, ""
	}
	if d, ok := v.Default(); ok {
		if s, err := d.String(); err == nil {
			def = s
		}
	}
	op, args := v.Expr()
	if op != cue.OrOp {
		return nil, def
	}
	seen := map[string]struct{}{}
	for _, a := range args {
		if a.Kind() != cue.StringKind {
			continue
		}
		s, err := a.String()
		if err != nil {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			values = append(values, s)
		}
	}
	return values, def
}

func position(err cueerrors.Error) CueErrorPosition {
	for _, r := range cueerrors.Positions(err) {
		if r.Filename() == "" {
			continue
		}
		return CueErrorPosition{
			Filename: r.Filename(),
			Line:     r.Line(),
			Column:   r.Column(),
		}
	}
	return CueErrorPosition{}
}

func normalizePath(p []string) string {
	if len(p) == 0 {
		return ""
	}
	// #Config
	if strings.HasPrefix(p[0], "#") {
		p = p[1:]
	}
	return strings.Join(p, ".")
}

func classify(raw, path string) (code, msg string) {
	switch {
	case reNotAllowed.MatchString(raw):
		return "unknown_field", fmt.Sprintf("Field %s is not allowed", last(path))
	case reIncomplete.MatchString(raw):
		return "missing_required", fmt.Sprintf("Field %s is required", last(path))
	case reConflict.MatchString(raw):
		return "conflicting_values", fmt.Sprintf("Conflicting values for %s", last(path))
	case reEnum.MatchString(raw):
		return "invalid_enum", fmt.Sprintf("Field %s has invalid value", last(path))
	case reExpectedGot.MatchString(raw):
		return "type_mismatch", fmt.Sprintf("Field %s has wrong type/value", last(path))
	default:
		return "validation_error", raw
	}
}

func lookup(path string) cue.Value {
	if path == "" {
		return schema
	}
	return schema.LookupPath(cue.ParsePath(path))
}

func last(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i+1:]
	}
	return p
}
