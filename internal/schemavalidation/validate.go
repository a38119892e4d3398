// Package schemavalidation structurally validates segment headers against a
// JSON Schema before the verifier attempts any cryptographic check.
package schemavalidation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const headerSchemaURL = "inputguard://schema/segment-header-v1.schema.json"

const headerSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "segment header",
  "type": "object",
  "required": ["ver", "suite", "session", "padded_len", "hkdf_info", "prev_tag", "sign_pub", "chain_tag", "sig"],
  "properties": {
    "ver":        {"type": "integer", "const": 1},
    "suite":      {"type": "string", "enum": ["CHACHA20P", "AES_SIV"]},
    "session":    {"type": "string", "pattern": "^[0-9a-f]+$"},
    "padded_len": {"type": "integer", "minimum": 256, "multipleOf": 256},
    "hkdf_info":  {"type": "string", "minLength": 1},
    "prev_tag":   {"type": "string", "pattern": "^[0-9a-f]{32}$"},
    "sign_pub":   {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "nonce":      {"type": "string", "pattern": "^[0-9a-f]+$"},
    "chain_tag":  {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "sig":        {"type": "string", "pattern": "^[0-9a-f]{128}$"}
  }
}`

var (
	once       sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func headerSchema() (*jsonschema.Schema, error) {
	once.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(headerSchemaURL, bytes.NewReader([]byte(headerSchemaJSON))); err != nil {
			compileErr = fmt.Errorf("schemavalidation: add schema resource: %w", err)
			return
		}
		s, err := compiler.Compile(headerSchemaURL)
		if err != nil {
			compileErr = fmt.Errorf("schemavalidation: compile schema: %w", err)
			return
		}
		compiled = s
	})
	return compiled, compileErr
}

// ValidateHeader checks raw header JSON against the segment header schema.
func ValidateHeader(headerJSON []byte) error {
	schema, err := headerSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(headerJSON, &instance); err != nil {
		return fmt.Errorf("schemavalidation: unmarshal header: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schemavalidation: header failed structural validation: %w", err)
	}
	return nil
}
