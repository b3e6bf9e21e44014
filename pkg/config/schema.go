package config

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

var rootSchema *jsonschema.Schema

func init() {
	js, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft2020)
	if err := compiler.AddResource("schema.json", js); err != nil {
		panic(err)
	}

	rootSchema, err = compiler.Compile("schema.json")
	if err != nil {
		panic(err)
	}
}

// Schema returns the JSON schema configuration files are validated against.
func Schema() []byte {
	return schemaJSON
}

// Validate checks a YAML or JSON document against the schema. An empty
// document is valid.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := rootSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
