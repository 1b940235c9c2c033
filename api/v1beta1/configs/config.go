// Package configs provides the global Config configuration type for skan.
package configs

import (
	"fmt"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/skan/api"
	"github.com/macropower/skan/api/v1beta1"
	"github.com/macropower/skan/pkg/scan"
	"github.com/macropower/skan/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen/main.go -o configs.v1beta1.json

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for global configurations.
	ValidKinds = []string{"Configuration"}

	// DefaultValidator validates global configuration against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config represents the global skan configuration.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	Scan             *scan.Config `json:",inline"`
	v1beta1.TypeMeta `json:",inline"`
}

// New creates a new global [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.TypeMeta{
			APIVersion: v1beta1.APIVersion,
			Kind:       "Configuration",
		},
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes nil fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Scan == nil {
		c.Scan = &scan.Config{}
	}

	c.Scan.EnsureDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scan != nil {
		err := c.Scan.Validate()
		if err != nil {
			return fmt.Errorf("validate scan config: %w", err)
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Write writes the config to the specified path if it doesn't already exist.
func (c Config) Write(path string) error {
	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = api.WriteIfNotExists(path, b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the global configuration file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
