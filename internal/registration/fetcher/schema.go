package fetcher

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFiles embed.FS

const (
	schemaSource  = "schema/source.json"
	schemaTrigger = "schema/trigger.json"
)

// schemaSet holds the compiled structural schemas for registration headers.
// Field-level bounds are enforced by the parsers, not here.
type schemaSet struct {
	byName map[string]*jsonschema.Schema
}

func compileSchemas() (*schemaSet, error) {
	compiler := jsonschema.NewCompiler()
	set := &schemaSet{byName: make(map[string]*jsonschema.Schema)}
	for _, name := range []string{schemaSource, schemaTrigger} {
		data, err := schemaFiles.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	for _, name := range []string{schemaSource, schemaTrigger} {
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		set.byName[name] = schema
	}
	return set, nil
}

func (s *schemaSet) validate(name, payload string) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("payload is not valid json: %w", err)
	}
	if err := s.byName[name].Validate(doc); err != nil {
		return fmt.Errorf("payload violates %s: %w", name, err)
	}
	return nil
}
