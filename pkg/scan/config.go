package scan

import (
	"fmt"
	"maps"
	"slices"

	"github.com/macropower/skan/pkg/execs"
	"github.com/macropower/skan/pkg/profile"
	"github.com/macropower/skan/pkg/rule"
	"github.com/macropower/skan/pkg/yaml"
)

const (
	filterYAMLFiles = `files.filter(f, pathExt(f) in [".yaml", ".yml"])`
	filterHelmFiles = `files.filter(f, pathExt(f) in [".yaml", ".yml", ".tpl"])`

	existsKustomizeProject = `files.exists(f,
  pathBase(f) in ["kustomization.yaml", "kustomization.yml"])`

	existsHelmV3Project = `files.exists(f,
  pathBase(f) in ["Chart.yaml", "Chart.yml"] &&
  yamlPath(f, "$.apiVersion") == "v2")`

	existsYAMLFiles = `files.exists(f,
  pathExt(f) in [".yaml", ".yml"])`
)

var (
	defaultProfiles = map[string]*profile.Profile{
		"ks": profile.MustNew("kustomize",
			profile.WithArgs("build", "."),
			profile.WithSource(filterYAMLFiles),
			profile.WithHooks(
				profile.MustNewHooks(
					profile.WithInit(
						profile.MustNewHookCommand("kustomize", profile.WithHookArgs("version")),
					),
				),
			)),
		"ks-helm": profile.MustNew("kustomize",
			profile.WithArgs("build", ".", "--enable-helm"),
			profile.WithSource(filterYAMLFiles),
			profile.WithHooks(
				profile.MustNewHooks(
					profile.WithInit(
						profile.MustNewHookCommand("kustomize", profile.WithHookArgs("version")),
					),
				),
			)),
		"helm": profile.MustNew("helm",
			profile.WithArgs("template", "."),
			profile.WithExtraArgs("-g"),
			profile.WithSource(filterHelmFiles),
			profile.WithEnvFrom([]execs.EnvFromSource{
				{
					CallerRef: &execs.CallerRef{
						Pattern: "^HELM_.+",
					},
				},
			}),
			profile.WithHooks(
				profile.MustNewHooks(
					profile.WithInit(
						profile.MustNewHookCommand("helm", profile.WithHookArgs("version", "--short")),
					),
					profile.WithPreRender(
						profile.MustNewHookCommand("helm",
							profile.WithHookArgs("dependency", "build"),
							profile.WithHookEnvFrom([]execs.EnvFromSource{
								{
									CallerRef: &execs.CallerRef{
										Pattern: "^HELM_.+",
									},
								},
							}),
						),
					),
				),
			)),
		"yaml": profile.MustNew("sh",
			profile.WithArgs("-c", "yq eval-all '.' *.yaml"),
			profile.WithSource(filterYAMLFiles),
			profile.WithHooks(
				profile.MustNewHooks(
					profile.WithInit(
						profile.MustNewHookCommand("yq", profile.WithHookArgs("-V")),
					),
				),
			)),
	}

	defaultRules = []*rule.Rule{
		rule.MustNew("ks", existsKustomizeProject),
		rule.MustNew("helm", existsHelmV3Project),
		rule.MustNew("yaml", existsYAMLFiles),
	}

	defaultScanner = MustNewScanner("checkov")

	DefaultConfig = MustNewConfig(defaultProfiles, defaultRules, defaultScanner)
)

// Config defines the core scan configuration.
type Config struct {
	// Profiles contains a map of profile names to renderer configurations.
	Profiles map[string]*profile.Profile `json:"profiles,omitempty" jsonschema:"title=Profiles"`
	// Scanner configures the policy scanner invocation.
	Scanner *Scanner `json:"scanner,omitempty" jsonschema:"title=Scanner"`
	// Exclude is a regular expression. Discovered manifests whose path
	// matches it are not listed or counted.
	Exclude string `json:"exclude,omitempty" jsonschema:"title=Exclude Pattern"`
	// Rules defines the rules for matching target paths to profiles.
	Rules []*rule.Rule `json:"rules,omitempty" jsonschema:"title=Rules"`
}

func NewConfig(ps map[string]*profile.Profile, rs []*rule.Rule, s *Scanner) (*Config, error) {
	c := &Config{
		Profiles: ps,
		Rules:    rs,
		Scanner:  s,
	}
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func MustNewConfig(ps map[string]*profile.Profile, rs []*rule.Rule, s *Scanner) *Config {
	c, err := NewConfig(ps, rs, s)
	if err != nil {
		panic(fmt.Sprintf("failed to create config: %v", err))
	}

	return c
}

func (c *Config) EnsureDefaults() {
	if c.Profiles == nil {
		c.Profiles = defaultProfiles
	}
	if c.Rules == nil {
		c.Rules = defaultRules
	}
	if c.Scanner == nil {
		c.Scanner = defaultScanner
	}
}

// Merge overlays the project configuration onto c. Profiles are merged by
// name with project profiles taking precedence. Project rules are prepended,
// since earlier rules have higher priority.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Profiles != nil {
		if c.Profiles == nil {
			c.Profiles = map[string]*profile.Profile{}
		}

		maps.Copy(c.Profiles, other.Profiles)
	}
	if len(other.Rules) > 0 {
		c.Rules = append(slices.Clone(other.Rules), c.Rules...)
	}
	if other.Scanner != nil {
		c.Scanner = other.Scanner
	}
	if other.Exclude != "" {
		c.Exclude = other.Exclude
	}
}

func (c *Config) Validate() error {
	pb := yaml.NewPathBuilder()

	for name, p := range c.Profiles {
		err := p.CompileSource()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid source for profile %q: %w", name, err),
				yaml.WithPath(pb.Root().Child("profiles").Child(name).Child("source").Build()),
			)
		}

		for i, env := range p.Command.Env {
			if env.ValueFrom == nil || env.ValueFrom.CallerRef == nil || env.ValueFrom.CallerRef.Pattern == "" {
				continue // Skip if no pattern is defined.
			}

			uIdx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.
			err := env.ValueFrom.CallerRef.Compile()
			if err != nil {
				return yaml.NewError(
					fmt.Errorf("invalid env pattern: %w", err),
					yaml.WithPath(pb.Root().
						Child("profiles").
						Child(name).
						Child("env").
						Index(uIdx).
						Child("valueFrom").
						Child("callerRef").
						Child("pattern").
						Build()),
				)
			}
		}

		for i, envFrom := range p.Command.EnvFrom {
			if envFrom.CallerRef == nil || envFrom.CallerRef.Pattern == "" {
				continue // Skip if no pattern is defined.
			}

			uIdx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.
			err := envFrom.CallerRef.Compile()
			if err != nil {
				return yaml.NewError(
					fmt.Errorf("invalid envFrom pattern: %w", err),
					yaml.WithPath(pb.Root().
						Child("profiles").
						Child(name).
						Child("envFrom").
						Index(uIdx).
						Child("callerRef").
						Child("pattern").
						Build()),
				)
			}
		}
		// TODO: Build should return *ConfigError to avoid the duplicate validation above.
		err = p.Build()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid profile: %w", err),
				yaml.WithPath(pb.Root().Child("profiles").Child(name).Build()),
			)
		}
	}

	if c.Scanner != nil {
		err := c.Scanner.Build()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid scanner: %w", err),
				yaml.WithPath(pb.Root().Child("scanner").Build()),
			)
		}
	}

	if c.Exclude != "" {
		_, err := execs.NewLazyRegexp(c.Exclude).Get()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid exclude pattern: %w", err),
				yaml.WithPath(pb.Root().Child("exclude").Build()),
			)
		}
	}

	for i, r := range c.Rules {
		uIdx := uint(i) //nolint:gosec // G115: integer overflow conversion int -> uint.
		err := r.CompileMatch()
		if err != nil {
			return yaml.NewError(
				fmt.Errorf("invalid match: %w", err),
				yaml.WithPath(pb.Root().Child("rules").Index(uIdx).Child("match").Build()),
			)
		}

		_, ok := c.Profiles[r.Profile]
		if !ok {
			return yaml.NewError(
				fmt.Errorf("profile %q not found", r.Profile),
				yaml.WithPath(pb.Root().Child("rules").Index(uIdx).Child("profile").Build()),
			)
		}
	}

	return nil
}
