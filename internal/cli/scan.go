package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/skan/api/v1beta1/configs"
	"github.com/macropower/skan/api/v1beta1/policies"
	"github.com/macropower/skan/pkg/config"
	"github.com/macropower/skan/pkg/log"
	"github.com/macropower/skan/pkg/mcp"
	"github.com/macropower/skan/pkg/policy"
	"github.com/macropower/skan/pkg/profile"
	"github.com/macropower/skan/pkg/scan"
)

const (
	cmdExamples = `  # Scan the current directory:
  skan

  # Scan a directory of manifests:
  skan ./deploy

  # List the manifests a scan would cover:
  skan ./deploy --dry-run

  # Render with the matched profile, then scan the output:
  skan ./deploy/overlays/prod --render

  # Render only and write the manifest to a file:
  skan ./deploy/overlays/prod --render-only > manifest.yaml

  # Force using the "ks" profile (defined in config):
  skan ./deploy/overlays/prod ks --render

  # Watch for changes and re-scan:
  skan ./deploy --watch

  # Pass extra arguments to the scanner:
  skan ./deploy -- --check CKV_K8S_21,CKV_K8S_43

  # Read manifests from stdin (disables rendering):
  cat ./deploy/resources.yaml | skan -

  # Serve the MCP server over HTTP:
  skan ./deploy --serve-mcp localhost:8080`
)

// ErrInvalidTarget indicates the scan target is missing or not a directory.
var ErrInvalidTarget = errors.New("target directory does not exist or is not a directory")

// scanner is the subset of the scan pipeline the CLI drives. It is satisfied
// by [scan.Runner] and [scan.Static].
type scanner interface {
	RunContext(ctx context.Context) scan.Result
	Subscribe(ch chan<- scan.Event)
	RunOnEvent()
	Close()
}

type ScanArgs struct {
	*RootArgs

	Path        string
	ConfigPath  string
	Profile     string
	ServeMCP    string
	OutputDir   string
	StdinData   []byte
	Args        []string
	DryRun      bool
	Debug       bool
	Render      bool
	RenderOnly  bool
	Watch       bool
	Trust       bool
	NoTrust     bool
	WriteConfig bool
	ShowConfig  bool
}

func NewScanArgs(rootArgs *RootArgs) *ScanArgs {
	return &ScanArgs{
		RootArgs: rootArgs,
	}
}

func (sa *ScanArgs) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&sa.ConfigPath, "config", "", "Path to the skan configuration file")
	cmd.Flags().StringVar(&sa.ServeMCP, "serve-mcp", "", `Serve the MCP server at the specified address, or "stdio"`)
	cmd.Flags().StringVarP(&sa.OutputDir, "output", "o", ".", "Base directory for rendered output, reports, and summaries")
	cmd.Flags().BoolVar(&sa.DryRun, "dry-run", false, "List the manifests a scan would cover and exit")
	cmd.Flags().BoolVarP(&sa.Debug, "debug", "d", false, "Force the debug log level")
	cmd.Flags().BoolVar(&sa.Render, "render", false, "Render the target before scanning")
	cmd.Flags().BoolVar(&sa.RenderOnly, "render-only", false, "Render the target and exit without scanning")
	cmd.Flags().BoolVarP(&sa.Watch, "watch", "w", false, "Watch for changes and trigger re-scans")
	cmd.Flags().BoolVar(&sa.Trust, "trust", false, "Trust the project configuration without prompting")
	cmd.Flags().BoolVar(&sa.NoTrust, "no-trust", false, "Skip the project configuration without prompting")
	cmd.Flags().BoolVar(&sa.WriteConfig, "write-config", false, "Write the default configuration files and exit")
	cmd.Flags().BoolVar(&sa.ShowConfig, "show-config", false, "Print the active configuration and exit")

	cmd.MarkFlagsMutuallyExclusive("trust", "no-trust")

	err := cmd.MarkFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

func NewScanCmd(sa *ScanArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan [path] [profile]",
		Short:   "Default command, can be used explicitly if path/profile is ambiguous",
		Example: cmdExamples,
		Args: func(cmd *cobra.Command, args []string) error {
			// Check if we have more than 2 args before the dash.
			dashPos := cmd.ArgsLenAtDash()
			if dashPos == -1 {
				// No dash, so all args count.
				if len(args) > 2 {
					return fmt.Errorf("accepts at most 2 args, received %d", len(args))
				}
			} else if dashPos > 2 {
				// Too many args before the dash.
				return fmt.Errorf("accepts at most 2 args before --, received %d", dashPos)
			}
			return nil
		},
		ValidArgsFunction: scanCompletion(sa),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path      = "."
				profName  string
				extraArgs []string
			)

			// Handle args before the dash (or all args if no dash).
			dashPos := cmd.ArgsLenAtDash()
			argsBeforeDash := args
			if dashPos != -1 {
				argsBeforeDash = args[:dashPos]
				extraArgs = args[dashPos:]
			}
			if len(argsBeforeDash) > 0 {
				path = argsBeforeDash[0]
			}
			if len(argsBeforeDash) > 1 {
				profName = argsBeforeDash[1]
			}

			sa.Path = path
			sa.Profile = profName
			sa.Args = extraArgs

			return run(cmd, sa)
		},
	}
	sa.AddFlags(cmd)

	bindEnvVars(cmd)

	return cmd
}

// Try to load config to get available profiles.
func tryGetProfileNames(configPath string) []cobra.Completion {
	if configPath == "" {
		configPath = configs.GetPath()
	}

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	if err != nil {
		return nil
	}

	cfg, err := cl.Load()
	if err != nil {
		return nil
	}

	profileNameDesc := map[string]string{}
	for k, v := range cfg.Scan.Profiles {
		profileNameDesc[k] = v.String()
	}
	if len(profileNameDesc) == 0 {
		return nil
	}

	completions := make([]cobra.Completion, 0, len(profileNameDesc))
	for name, desc := range profileNameDesc {
		completions = append(completions, cobra.CompletionWithDesc(name, desc))
	}

	return completions
}

func scanCompletion(sa *ScanArgs) func(*cobra.Command, []string, string) ([]cobra.Completion, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, args []string, _ string) ([]cobra.Completion, cobra.ShellCompDirective) {
		// First argument: path completion.
		if len(args) == 0 {
			return nil, cobra.ShellCompDirectiveFilterDirs
		}

		// Dash argument: extra args completion.
		// This needs to happen after the first argument is handled, even though
		// passing the dash argument first still works. This is to prevent showing
		// subcommands as completions for the first argument.
		dashPos := argsLenAtDash(os.Args)
		if dashPos != -1 && len(args) >= dashPos {
			return nil, cobra.ShellCompDirectiveDefault
		}

		// Second argument: profile completion.
		if len(args) == 1 {
			return tryGetProfileNames(sa.ConfigPath), cobra.ShellCompDirectiveNoFileComp
		}

		// No more arguments accepted.
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
}

// Hack to find the position of the first dash argument.
// Can be removed after https://github.com/spf13/cobra/pull/2259 is merged.
func argsLenAtDash(args []string) int {
	var dashPos int
	for _, arg := range args {
		if arg == "__complete" {
			// Ignore the __complete argument.
			continue
		}

		if arg == "--" {
			return dashPos - 1
		}

		dashPos++
	}

	return -1 // No dash argument found.
}

func run(cmd *cobra.Command, rc *ScanArgs) error {
	ctx := cmd.Context()

	if rc.Debug && rc.LogLevel != string(log.LevelDebug) {
		rc.LogLevel = string(log.LevelDebug)

		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))
	}

	if rc.Path == "-" {
		in := cmd.InOrStdin()
		b, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}

		rc.StdinData = b
	} else {
		err := validateTarget(rc.Path)
		if err != nil {
			return err
		}
	}

	cfg := configs.New()

	var configPath string
	if rc.ConfigPath != "" {
		configPath = rc.ConfigPath
	} else {
		configPath = configs.GetPath()
	}

	policyPath := policies.GetPath()

	writeErr := errors.Join(
		configs.WriteDefault(configPath, false),
		policies.WriteDefault(policyPath, false),
	)
	if writeErr != nil {
		slog.Error("write default files", slog.Any("err", writeErr))
	}
	if rc.WriteConfig {
		// Exit early after writing the default files.
		// Also, if there was an error, it should be fatal.
		return writeErr
	}

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	if err != nil {
		slog.Warn("could not read config, using defaults", slog.Any("err", err))
	} else {
		err = cl.Validate()
		if err != nil {
			return fmt.Errorf("invalid config %q: %w", configPath, err)
		}

		cfg, err = cl.Load()
		if err != nil {
			return fmt.Errorf("invalid config %q: %w", configPath, err)
		}
	}

	if rc.Path != "-" {
		err := applyProjectConfig(cfg, policyPath, rc)
		if err != nil {
			return err
		}
	}

	if rc.ShowConfig {
		return showConfig(cmd, cfg, configPath)
	}

	if rc.DryRun {
		if rc.Path == "-" {
			return errors.New("cannot dry-run stdin input")
		}

		return dryRun(ctx, rc.Path, cfg.Scan.Exclude)
	}

	var sr scanner

	if len(rc.StdinData) > 0 {
		s, err := effectiveScanner(cfg, rc.Args)
		if err != nil {
			return err
		}

		sr, err = scan.NewStatic(string(rc.StdinData),
			scan.WithStaticScanner(s),
			scan.WithStaticOutputDir(rc.OutputDir),
		)
		if err != nil {
			return fmt.Errorf("create static scanner: %w", err)
		}
	} else {
		sr, err = setupRunner(rc.Path, cfg, rc)
		if err != nil {
			return fmt.Errorf("create scan runner: %w", err)
		}
	}
	defer sr.Close()

	if rc.ServeMCP != "" {
		return serveMCP(cmd, sr, rc)
	}

	if rc.Watch {
		return watchScan(ctx, sr)
	}

	res := sr.RunContext(ctx)
	if res.Error != nil {
		return fmt.Errorf("scan %q: %w", res.Target, res.Error)
	}

	if rc.RenderOnly {
		// If stdout is not a terminal, emit the rendered manifest itself.
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			_, err := fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
			if err != nil {
				return fmt.Errorf("write to stdout: %w", err)
			}

			return nil
		}

		log.WithContext(ctx).InfoContext(ctx, "render complete", slog.String("path", res.Manifest))
	}

	return nil
}

// validateTarget ensures the target exists and is a directory before any
// pipeline stage runs.
func validateTarget(path string) error {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, path)
	}

	return nil
}

// dryRun lists the manifests a scan would cover, without executing anything.
func dryRun(ctx context.Context, path, exclude string) error {
	cr, err := scan.NewRunner(path, scan.WithExclude(exclude))
	if err != nil {
		return fmt.Errorf("create scan runner: %w", err)
	}
	defer cr.Close()

	files, err := cr.DiscoverManifests()
	if err != nil {
		return fmt.Errorf("discover manifests: %w", err)
	}

	logger := log.WithContext(ctx)
	for _, file := range files {
		attrs := []any{slog.String("file", file)}

		info, err := os.Stat(file)
		if err == nil {
			attrs = append(attrs, slog.String("size", humanize.Bytes(uint64(max(0, info.Size())))))
		}

		logger.InfoContext(ctx, "would scan", attrs...)
	}

	logger.InfoContext(ctx, "dry run complete", slog.Int("total", len(files)))

	return nil
}

// showConfig prints the active configuration and exits.
func showConfig(cmd *cobra.Command, cfg *configs.Config, configPath string) error {
	slog.Info("active configuration", slog.String("path", configPath))

	yamlBytes, err := cfg.MarshalYAML()
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}

	yamlConfig := string(yamlBytes)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		mustN(fmt.Fprintln(cmd.OutOrStdout(), yamlConfig))

		return nil
	}

	err = quick.Highlight(cmd.OutOrStdout(), yamlConfig, "yaml", "terminal256", "monokai")
	if err != nil {
		mustN(fmt.Fprintln(cmd.OutOrStdout(), yamlConfig))

		return err
	}

	mustN(fmt.Fprintln(cmd.OutOrStdout()))

	return nil
}

// loadPolicy loads the trust policy, falling back to defaults when the file
// is unreadable or invalid.
func loadPolicy(path string) *policies.Policy {
	pl, err := config.NewLoaderFromFile(path, policies.New, policies.DefaultValidator)
	if err != nil {
		slog.Warn("could not read policy, using defaults", slog.Any("err", err))

		return policies.New()
	}

	pol, err := pl.Load()
	if err != nil {
		slog.Warn("invalid policy, using defaults", slog.String("path", path), slog.Any("err", err))

		return policies.New()
	}

	return pol
}

// applyProjectConfig overlays a trusted project configuration onto cfg.
func applyProjectConfig(cfg *configs.Config, policyPath string, rc *ScanArgs) error {
	mode := policy.TrustModePrompt
	switch {
	case rc.Trust:
		mode = policy.TrustModeAllow
	case rc.NoTrust:
		mode = policy.TrustModeSkip
	}

	tm := policy.NewTrustManager(loadPolicy(policyPath), policyPath)

	projectCfg, err := tm.LoadTrustedProjectConfig(rc.Path, NewTrustPrompter(), mode)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}

	if projectCfg != nil {
		cfg.Scan.Merge(projectCfg.Scan)

		// Project rules may reference project profiles, so the merged result
		// is validated as a whole.
		err = cfg.Scan.Validate()
		if err != nil {
			return fmt.Errorf("validate merged config: %w", err)
		}
	}

	return nil
}

// effectiveScanner returns the configured scanner, extended with extra
// arguments when the scanner is the tool they target.
func effectiveScanner(cfg *configs.Config, extraArgs []string) (*scan.Scanner, error) {
	s := cfg.Scan.Scanner
	if len(extraArgs) == 0 {
		return s, nil
	}

	// Create a copy of the scanner to avoid mutating shared config.
	sc := *s
	sc.ExtraArgs = append(slices.Clone(sc.ExtraArgs), extraArgs...)

	err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("rebuild scanner with extra args: %w", err)
	}

	return &sc, nil
}

func getProfile(cfg *configs.Config, name string, args []string) (*profile.Profile, error) {
	p, ok := cfg.Scan.Profiles[name]
	if !ok {
		// If the name is not a profile, create a new profile with it as the
		// renderer command.
		slog.Debug("creating new profile", slog.String("name", name))

		var err error

		p, err = profile.New(name, profile.WithExtraArgs(args...))
		if err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
	}

	return p, nil
}

// setupRunner creates and configures the scan runner. Extra arguments are
// routed to the renderer in render mode and to the scanner otherwise.
func setupRunner(path string, cfg *configs.Config, rc *ScanArgs) (*scan.Runner, error) {
	renderMode := rc.Render || rc.RenderOnly

	var (
		rendererArgs []string
		scannerArgs  []string
	)

	if renderMode {
		rendererArgs = rc.Args
	} else {
		scannerArgs = rc.Args
	}

	s, err := effectiveScanner(cfg, scannerArgs)
	if err != nil {
		return nil, err
	}

	opts := []scan.RunnerOpt{
		scan.WithScanner(s),
		scan.WithExclude(cfg.Scan.Exclude),
		scan.WithOutputDir(rc.OutputDir),
		scan.WithRender(rc.Render),
		scan.WithRenderOnly(rc.RenderOnly),
		scan.WithWatch(rc.Watch),
	}

	if rc.Profile != "" {
		p, err := getProfile(cfg, rc.Profile, rendererArgs)
		if err != nil {
			return nil, err
		}

		opts = append(opts, scan.WithCustomProfile(rc.Profile, p))
	} else {
		opts = append(opts,
			scan.WithRules(cfg.Scan.Rules),
			scan.WithProfiles(cfg.Scan.Profiles),
		)
	}

	if len(rendererArgs) > 0 {
		opts = append(opts, scan.WithExtraArgs(rendererArgs...))
	}

	cr, err := scan.NewRunner(path, opts...)
	if err != nil {
		return nil, err
	}

	return cr, nil
}

// serveMCP runs the MCP server in the foreground over the scan runner.
func serveMCP(cmd *cobra.Command, sr scanner, rc *ScanArgs) error {
	ctx := cmd.Context()

	cr, ok := sr.(*scan.Runner)
	if !ok {
		return errors.New("cannot serve MCP for stdin input")
	}

	addr := rc.ServeMCP
	if addr == "stdio" {
		addr = ""
	}

	mcpServer, err := mcp.NewServer(addr, cr, rc.Path)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	defer mcpServer.Close()

	if rc.Watch {
		go cr.RunOnEvent()
	}

	if addr == "" {
		// The stdio transport owns the terminal. Defer log output until the
		// server exits.
		logBuf := log.NewCircularBuffer(100)

		logHandler, err := log.CreateHandlerWithStrings(logBuf, rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))
		defer flushLogs(cmd.ErrOrStderr(), logBuf)
	}

	err = mcpServer.Serve(ctx)
	if err != nil {
		return fmt.Errorf("MCP server: %w", err)
	}

	return nil
}

// watchScan runs an initial scan and then re-scans on file events until the
// context is canceled. Scan failures are logged, not fatal.
func watchScan(ctx context.Context, sr scanner) error {
	ch := make(chan scan.Event)
	sr.Subscribe(ch)

	go sr.RunOnEvent()
	go func() {
		sr.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-ch:
			e, ok := event.(scan.EventEnd)
			if !ok {
				continue
			}

			res := scan.Result(e)
			if res.Error != nil {
				ectx := e.GetContext()
				log.WithContext(ectx).ErrorContext(ectx, "scan failed", slog.Any("err", res.Error))
			}
		}
	}
}

func flushLogs(w io.Writer, buf *log.CircularBuffer) {
	slog.Debug("flush logs to console",
		slog.Int("count", buf.Size()),
		slog.Int("max", buf.Capacity()),
		slog.Bool("truncated", buf.IsFull()),
	)

	_, err := buf.WriteTo(w)
	if err != nil {
		panic(err)
	}
}
