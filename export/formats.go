// Package export renders validation results and rule catalogs for the CLI
// and for tools that consume reports.
package export

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatJSON produces the stable JSON contract.
	FormatJSON Format = "json"

	// FormatText produces a human readable report.
	FormatText Format = "text"

	// FormatYAML produces a rule file. Only catalogs support it.
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for a format name not in FormatRegistry.
var ErrUnknownFormat = errors.New("unknown export format")

// ErrUnsupported is returned when a format cannot render the requested
// document.
var ErrUnsupported = errors.New("format not supported for this document")

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string

	// Results reports whether validation results can be written.
	Results bool
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatJSON: {
		Name:        FormatJSON,
		MIMEType:    "application/json",
		Extension:   ".json",
		Description: "JSON - stable machine readable contract",
		Results:     true,
	},
	FormatText: {
		Name:        FormatText,
		MIMEType:    "text/plain",
		Extension:   ".txt",
		Description: "Text - report for terminals",
		Results:     true,
	},
	FormatYAML: {
		Name:        FormatYAML,
		MIMEType:    "application/yaml",
		Extension:   ".yaml",
		Description: "YAML - rule file accepted by the registry",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := FormatRegistry[f]; !ok {
		return "", fmt.Errorf("%w %q (want one of %s)", ErrUnknownFormat, s, strings.Join(names(Formats()), ", "))
	}
	return f, nil
}

// Formats returns the registered formats in name order.
func Formats() []Format {
	out := make([]Format, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func names(fs []Format) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
