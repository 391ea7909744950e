package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	actSchemaOnce sync.Once
	actSchema     *jsonschema.Schema
	actSchemaErr  error
)

// Schema compiles one of the embedded message schemas.
func Schema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(name, string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}

// ValidateAct checks a raw ACT message against act.schema.json.
func ValidateAct(raw []byte) error {
	actSchemaOnce.Do(func() {
		actSchema, actSchemaErr = Schema("act.schema.json")
	})
	if actSchemaErr != nil {
		return actSchemaErr
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return actSchema.Validate(doc)
}
