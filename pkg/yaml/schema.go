package yaml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invopop/jsonschema"
)

// ModulePath is the import path prefix shared by all packages in this module.
const ModulePath = "github.com/macropower/skan"

// SchemaGenerator reflects Go types into JSON schemas.
// Uses [github.com/invopop/jsonschema].
type SchemaGenerator struct {
	value       any
	importPaths []string
}

// NewSchemaGenerator creates a [SchemaGenerator] for the given value.
// Go doc comments from the provided import paths become property
// descriptions in the generated schema.
func NewSchemaGenerator(v any, importPaths ...string) *SchemaGenerator {
	return &SchemaGenerator{
		value:       v,
		importPaths: importPaths,
	}
}

// Generate reflects the value into an indented JSON schema document.
func (g *SchemaGenerator) Generate() ([]byte, error) {
	r := &jsonschema.Reflector{}

	root, err := findModuleRoot()
	if err != nil {
		return nil, err
	}

	for _, importPath := range g.importPaths {
		rel := strings.TrimPrefix(importPath, ModulePath+"/")

		err := r.AddGoComments(importPath, filepath.Join(root, rel))
		if err != nil {
			return nil, fmt.Errorf("add comments from %q: %w", importPath, err)
		}
	}

	schema := r.Reflect(g.value)

	jsData, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	return jsData, nil
}

// findModuleRoot walks up from the working directory until it finds go.mod.
// Generators run via go:generate from arbitrary package directories.
func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		_, err := os.Stat(filepath.Join(dir, "go.mod"))
		if err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}

		dir = parent
	}
}
