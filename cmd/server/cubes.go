package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/lychee-technology/prism"
)

// cubeSchemaJSON validates cube definition documents before they touch the
// registry, so a malformed file fails with a schema error naming the field
// instead of a registry error naming the cube.
const cubeSchemaJSON = `{
	"type": "object",
	"required": ["name", "dimensions", "measures"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"description": {"type": "string"},
		"table": {"type": "string"},
		"scopeColumn": {"type": "string"},
		"eventStream": {"type": "boolean"},
		"dimensions": {
			"type": "object",
			"minProperties": 1,
			"additionalProperties": {
				"type": "object",
				"required": ["sql", "type"],
				"properties": {
					"sql": {
						"type": "object",
						"required": ["sql"],
						"properties": {
							"sql": {"type": "string"},
							"args": {"type": "array"}
						}
					},
					"type": {"enum": ["string", "number", "boolean", "time"]},
					"title": {"type": "string"},
					"description": {"type": "string"},
					"primaryKey": {"type": "boolean"}
				}
			}
		},
		"measures": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["type"],
				"properties": {
					"type": {"enum": [
						"count", "countDistinct", "countDistinctApprox",
						"sum", "avg", "min", "max",
						"stddev", "median", "p95",
						"calculated", "window"
					]},
					"sql": {"type": "object"},
					"title": {"type": "string"},
					"description": {"type": "string"},
					"format": {"enum": ["number", "percent", "currency"]},
					"filters": {"type": "array"},
					"window": {"type": "object"},
					"drillMembers": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"joins": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["targetCube", "relationship", "columns"],
				"properties": {
					"targetCube": {"type": "string"},
					"relationship": {"enum": ["belongsTo", "hasOne", "hasMany"]},
					"columns": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["sourceColumn", "targetColumn"]
						}
					},
					"preferredFor": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"hierarchies": {"type": "object"}
	}
}`

// cubeDocument is the on-disk form of a cube. The base relation is declared
// as data (table plus optional tenant scope column) instead of a BaseQueryFunc
// so definitions stay editable without a rebuild.
type cubeDocument struct {
	Name        string                     `json:"name"`
	Title       string                     `json:"title,omitempty"`
	Description string                     `json:"description,omitempty"`
	Table       string                     `json:"table,omitempty"`
	ScopeColumn string                     `json:"scopeColumn,omitempty"`
	EventStream bool                       `json:"eventStream,omitempty"`
	Dimensions  map[string]prism.Dimension `json:"dimensions"`
	Measures    map[string]prism.Measure   `json:"measures"`
	Joins       map[string]prism.Join      `json:"joins,omitempty"`
	Hierarchies map[string]prism.Hierarchy `json:"hierarchies,omitempty"`
}

// toCube converts the document into a registrable cube. A scopeColumn becomes
// the cube's base predicate, bound to the caller's organisation id.
func (d *cubeDocument) toCube() *prism.Cube {
	cube := &prism.Cube{
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		EventStream: d.EventStream,
		Dimensions:  d.Dimensions,
		Measures:    d.Measures,
		Joins:       d.Joins,
		Hierarchies: d.Hierarchies,
	}
	if d.Table != "" || d.ScopeColumn != "" {
		table := d.Table
		scope := d.ScopeColumn
		cube.Base = func(qctx *prism.QueryContext) prism.BaseQuery {
			base := prism.BaseQuery{From: table}
			if scope != "" {
				base.Where = prism.Expression{
					SQL:  "{CUBE}." + scope + " = ?",
					Args: []any{qctx.Security.OrganisationID},
				}
			}
			return base
		}
	}
	return cube
}

// compileCubeSchema resolves the embedded cube document schema.
func compileCubeSchema() (*jsonschema.Resolved, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(cubeSchemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cube schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cube schema: %w", err)
	}
	return resolved, nil
}

// loadCubeDir reads every *.json file in dir, validates it against the cube
// document schema and registers the result. Files load in name order so
// registry errors are reproducible.
func loadCubeDir(dir string) (*prism.CubeRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cube directory %s: %w", dir, err)
	}

	resolved, err := compileCubeSchema()
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no cube definitions found in %s", dir)
	}

	registry := prism.NewCubeRegistry()
	for _, name := range files {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, fmt.Errorf("invalid json in %s: %w", path, err)
		}
		if err := resolved.Validate(decoded); err != nil {
			return nil, fmt.Errorf("cube validation failed for %s: %w", path, err)
		}

		var doc cubeDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if err := registry.Register(doc.toCube()); err != nil {
			return nil, fmt.Errorf("failed to register cube from %s: %w", path, err)
		}
	}
	return registry, nil
}
