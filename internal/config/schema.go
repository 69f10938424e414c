package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"tellcocli/internal/dataset"
)

// LoadSchema reads a column schema from YAML. An empty path returns the
// default TellCo schema. Fields absent from the file keep their defaults,
// except services, which the file replaces as a whole when present.
func LoadSchema(path string) (dataset.Schema, error) {
	schema := dataset.DefaultSchema()
	if path == "" {
		return schema, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return schema, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes and validates a YAML schema over the defaults
func ParseSchema(data []byte) (dataset.Schema, error) {
	schema := dataset.DefaultSchema()
	if err := yaml.UnmarshalStrict(data, &schema); err != nil {
		return schema, fmt.Errorf("failed to parse schema: %w", err)
	}
	if err := ValidateSchema(schema); err != nil {
		return schema, err
	}
	return schema, nil
}

// ValidateSchema checks that every logical field names a column
func ValidateSchema(schema dataset.Schema) error {
	if err := validator.New().Struct(schema); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid schema: %s is %s", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid schema: %w", err)
	}

	seen := make(map[string]bool)
	for _, col := range schema.NumericColumns() {
		if seen[col] {
			return fmt.Errorf("invalid schema: column %q used twice", col)
		}
		seen[col] = true
	}
	return nil
}
