package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeParams decodes a raw parameter map into a kind's typed parameter
// struct. Unknown keys and type mismatches are rejected.
func decodeParams(raw map[string]any, out any) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

// compilePatterns compiles regular expressions, case-insensitive unless
// caseSensitive is set.
func compilePatterns(patterns []string, caseSensitive bool) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if !caseSensitive {
			p = "(?i)" + p
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidParameter, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// phraseList tokenizes configured phrases, dropping empty ones.
func phraseList(entries []string) [][]string {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		if w := words(e); len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

func paramErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// target selects which part of the definition a pattern kind inspects.
type target string

const (
	targetDefinition target = "definition"
	targetTerm       target = "term"
	targetExamples   target = "examples"
)

func parseTarget(s string) (target, error) {
	switch t := target(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return targetDefinition, nil
	case targetDefinition, targetTerm, targetExamples:
		return t, nil
	default:
		return "", paramErr("unknown target %q", s)
	}
}
