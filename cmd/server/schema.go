package main

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lychee-technology/prism"
)

// querySchemaJSON rejects malformed query bodies before planning. Top-level
// typos ("measuers") fail here with a field-level message instead of being
// silently ignored by the decoder.
const querySchemaJSON = `{
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"measures": {"type": "array", "items": {"type": "string"}},
		"dimensions": {"type": "array", "items": {"type": "string"}},
		"timeDimensions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["dimension"],
				"properties": {
					"dimension": {"type": "string"},
					"granularity": {"type": "string"},
					"dateRange": {},
					"compareDateRange": {"type": "boolean"}
				}
			}
		},
		"filters": {"type": "array"},
		"order": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["member"],
				"properties": {
					"member": {"type": "string"},
					"direction": {"enum": ["asc", "desc"]}
				}
			}
		},
		"limit": {"type": "integer", "minimum": 0},
		"offset": {"type": "integer", "minimum": 0},
		"cubes": {"type": "array", "items": {"type": "string"}},
		"flow": {
			"type": "object",
			"required": ["startingStep", "bindingKey", "timeDimension", "eventDimension"]
		}
	}
}`

var compileQuerySchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(querySchemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query schema: %w", err)
	}
	return schema.Resolve(&jsonschema.ResolveOptions{})
})

// readSemanticQuery decodes a request body into a SemanticQuery after
// validating it against the query schema.
func readSemanticQuery(r *http.Request) (*prism.SemanticQuery, error) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("invalid json body: %w", err)
	}

	resolved, err := compileQuerySchema()
	if err != nil {
		return nil, err
	}
	if err := resolved.Validate(decoded); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	var query prism.SemanticQuery
	if err := json.Unmarshal(raw, &query); err != nil {
		return nil, fmt.Errorf("failed to decode query: %w", err)
	}
	return &query, nil
}
