package rules

import (
	_ "embed"
)

//go:embed defaults.yaml
var defaultRules []byte

// DefaultSource returns the built-in catalog of 45 rules.
func DefaultSource() Source {
	return BytesSource{Label: "builtin", Data: defaultRules}
}

// DefaultRules returns the raw built-in rule file, e.g. to seed a rules
// directory.
func DefaultRules() []byte {
	out := make([]byte, len(defaultRules))
	copy(out, defaultRules)
	return out
}

// NewDefaultRegistry creates a registry loaded with the built-in catalog.
// The catalog is compiled into the binary, so a failure here is a
// programming error.
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	if err := r.Load(DefaultSource()); err != nil {
		panic("rules: built-in catalog: " + err.Error())
	}
	return r
}
