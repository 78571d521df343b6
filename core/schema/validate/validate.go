// Package validate checks JSON and JSONL documents against the embedded
// opsgraph schemas.
package validate

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonschema"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

const codeSchemaValidation = "schema_validation_failed"

func ValidateJSONFile(schemaData []byte, jsonPath string) error {
	schema, err := compileSchema(schemaData)
	if err != nil {
		return err
	}
	// #nosec G304 -- document path is explicit local user input.
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return coreerrors.Invalid("read json: %v", err)
	}
	return validateJSON(schema, data)
}

func ValidateJSON(schemaData []byte, data []byte) error {
	schema, err := compileSchema(schemaData)
	if err != nil {
		return err
	}
	return validateJSON(schema, data)
}

func ValidateJSONLFile(schemaData []byte, jsonlPath string) error {
	schema, err := compileSchema(schemaData)
	if err != nil {
		return err
	}
	// #nosec G304 -- journal path is explicit local user input.
	data, err := os.ReadFile(jsonlPath)
	if err != nil {
		return coreerrors.Invalid("read jsonl: %v", err)
	}
	return validateJSONL(schema, data)
}

func compileSchema(schemaData []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(schemaData)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("compile schema: %w", err), coreerrors.CategoryInternalFailure, "schema_compile_failed", "rebuild with a valid embedded schema", false)
	}
	return schema, nil
}

func validateJSON(schema *jsonschema.Schema, data []byte) error {
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return coreerrors.Wrap(fmt.Errorf("schema validation failed: %v", result.Errors), coreerrors.CategoryInvalidInput, codeSchemaValidation, "fix the document so it matches the published schema", false)
}

func validateJSONL(schema *jsonschema.Schema, data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := validateJSON(schema, b); err != nil {
			return coreerrors.Wrap(fmt.Errorf("jsonl line %d: %w", line, err), coreerrors.CategoryInvalidInput, codeSchemaValidation, "fix or truncate the offending journal line", false)
		}
	}
	if err := scanner.Err(); err != nil {
		return coreerrors.Invalid("read jsonl: %v", err)
	}
	return nil
}
