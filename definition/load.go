package definition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a Definition from a JSON or YAML file. The format is chosen
// by extension; anything other than .json is parsed as YAML.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	var def Definition
	if err := decode(path, data, &def); err != nil {
		return nil, fmt.Errorf("parse definition file: %w", err)
	}

	def.Category, err = ParseOntologicalCategory(string(def.Category))
	if err != nil {
		return nil, err
	}

	return &def, nil
}

// LoadContextFile reads a Context from a JSON or YAML file.
func LoadContextFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}

	var c Context
	if err := decode(path, data, &c); err != nil {
		return nil, fmt.Errorf("parse context file: %w", err)
	}
	return &c, nil
}

func decode(path string, data []byte, v any) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}
