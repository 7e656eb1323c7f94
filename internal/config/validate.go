package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema structurally validates a loaded config. Durations are Go
// duration strings; empty strings are allowed and fall back to defaults.
const configSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "server": {
      "type": "object",
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "string", "pattern": "^[0-9]*$"}
      }
    },
    "storage": {
      "type": "object",
      "properties": {
        "endpoint": {"type": "string"},
        "access_key": {"type": "string"},
        "secret_key": {"type": "string"},
        "use_ssl": {"type": "boolean"},
        "region": {"type": "string"},
        "public_bucket": {"type": "string", "minLength": 1},
        "private_bucket": {"type": "string", "minLength": 1},
        "presign_ttl": {"$ref": "#/$defs/duration"}
      },
      "required": ["public_bucket", "private_bucket"]
    },
    "pipeline": {
      "type": "object",
      "properties": {
        "auto_process": {"type": "boolean"},
        "sweep_interval": {"$ref": "#/$defs/duration"},
        "use_vectorlink_importer": {"type": "boolean"},
        "use_vectorlink_document_extractors": {"type": "boolean"}
      }
    },
    "stages": {
      "type": "object",
      "properties": {
        "ocr": {"$ref": "#/$defs/stage"},
        "decorator": {"$ref": "#/$defs/stage"},
        "training": {"$ref": "#/$defs/stage"}
      }
    },
    "vectorlink": {
      "type": "object",
      "properties": {
        "url": {"type": "string"},
        "api_key": {"type": "string"},
        "namespace": {"type": "string"},
        "timeout": {"$ref": "#/$defs/duration"}
      }
    }
  },
  "$defs": {
    "stage": {
      "type": "object",
      "properties": {
        "url": {"type": "string"},
        "api_key": {"type": "string"},
        "timeout": {"$ref": "#/$defs/duration"}
      }
    },
    "duration": {
      "type": "string",
      "pattern": "^$|^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// Validate checks a config against the embedded JSON schema.
func Validate(cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config for validation: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("failed to decode config for validation: %w", err)
	}

	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
