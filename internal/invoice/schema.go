package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "invoice_record.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// BuildRecordJSONSchema describes the Record invariants as a JSON Schema
// (draft 2020-12 subset). Every field is required; empty strings are allowed.
func BuildRecordJSONSchema() map[string]any {
	text := map[string]any{"type": "string"}
	props := map[string]any{
		"invoice_type":   text,
		"invoice_code":   text,
		"invoice_number": text,
		"date":           text,
		"purchaser_name": text,
		"seller_name":    text,
		"amount":         amountProp(),
		"tax_rate":       map[string]any{"type": "string", "pattern": `^(\d+%)?$`},
		"tax_amount":     amountProp(),
		"total_with_tax": amountProp(),
		"remarks":        text,
	}
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func amountProp() map[string]any {
	return map[string]any{
		"type":    "string",
		"pattern": `^(\d+\.\d{2})?$`,
	}
}

func recordSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(BuildRecordJSONSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Validate checks r against the record schema.
func Validate(r Record) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
