package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/skan/pkg/execs"
	"github.com/macropower/skan/pkg/kube"
	"github.com/macropower/skan/pkg/log"
	"github.com/macropower/skan/pkg/profile"
	"github.com/macropower/skan/pkg/report"
	"github.com/macropower/skan/pkg/rule"
)

// ErrNoProfileForPath is returned when no renderer profile matches a path.
var ErrNoProfileForPath = errors.New("no profile for path")

const (
	// scanOutputDir receives the scanner's reports and generated summaries.
	scanOutputDir = "checkov_output"
	// renderOutputDir receives staged render output.
	renderOutputDir = "rendered_output"
	// renderFileName is the staged manifest inside each render directory.
	renderFileName = "manifest.yaml"

	renderStampFormat = "20060102-150405"
)

// Runner drives the scan pipeline for a target path. It manages:
//   - Renderer profile selection via rules.
//   - Filesystem notifications / watching.
//   - Concurrent pipeline execution.
type Runner struct {
	tracer   trace.Tracer
	profiles map[string]*profile.Profile
	scanner  *Scanner
	watcher  *fsnotify.Watcher

	// The root filesystem to operate on. This prevents later re-configuration
	// from escaping the originally configured root path.
	root RootFS

	// Track watched files.
	// Enables directory watching to behave similarly to file watching.
	// Note that it stores absolute file paths (not relative to the root).
	watchedFiles map[string]struct{}

	// Track watched directories.
	// Enables un-watching in re-configuration scenarios.
	// Note that it stores absolute directory paths (not relative to the root).
	watchedDirs map[string]struct{}

	currentProfile     *profile.Profile
	cancelFunc         context.CancelFunc
	exclude            *execs.LazyRegexp
	path               string
	outputDir          string
	currentProfileName string
	listeners          []chan<- Event
	allRules           []*rule.Rule
	extraArgs          []string
	mu                 sync.Mutex
	watch              bool
	render             bool
	renderOnly         bool
}

// NewRunner creates a new [Runner]. It uses the current working directory as
// the filesystem root.
func NewRunner(path string, opts ...RunnerOpt) (*Runner, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get current working directory: %w", err)
	}

	root, err := os.OpenRoot(wd)
	if err != nil {
		return nil, fmt.Errorf("open root directory %q: %w", wd, err)
	}

	return NewRunnerWithRoot(root, path, opts...)
}

// NewRunnerWithRoot creates a new [Runner] using the provided [RootFS].
// This is not a normal opt since it cannot be re-configured after the runner
// has been created.
func NewRunnerWithRoot(root RootFS, path string, opts ...RunnerOpt) (*Runner, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	cr := &Runner{
		watchedDirs:  make(map[string]struct{}),
		watchedFiles: make(map[string]struct{}),
		profiles:     make(map[string]*profile.Profile),
		tracer:       otel.Tracer("scan-runner"),
		root:         root,
		watcher:      watcher,
	}

	if len(opts) == 0 {
		// Defaults if no options are provided.
		opts = append(opts,
			WithRules(DefaultConfig.Rules),
			WithProfiles(DefaultConfig.Profiles),
			WithScanner(DefaultConfig.Scanner))
	}

	opts = append(opts, WithPath(path))

	err = cr.Configure(opts...)
	if err != nil {
		return nil, err
	}

	return cr, nil
}

func (cr *Runner) Configure(opts ...RunnerOpt) error {
	return cr.ConfigureContext(context.Background(), opts...)
}

// ConfigureContext applies options to an existing runner.
// This allows reconfiguration after creation.
func (cr *Runner) ConfigureContext(ctx context.Context, opts ...RunnerOpt) error {
	ctx, span := cr.tracer.Start(ctx, "configure")
	defer span.End()

	logger := log.WithContext(ctx)

	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.removeWatchers(ctx)

	// Cancel any currently running scan.
	if cr.cancelFunc != nil {
		// Note: The cancel event is broadcast by the canceled goroutine.
		cr.cancelFunc()
	}

	// Apply options.
	for _, opt := range opts {
		err := opt(cr)
		if err != nil {
			return fmt.Errorf("apply option: %w", err)
		}
	}

	if cr.scanner == nil {
		cr.scanner = DefaultConfig.Scanner
	}

	if cr.currentProfileName != "" && cr.currentProfile == nil {
		var ok bool

		cr.currentProfile, ok = cr.profiles[cr.currentProfileName]
		if !ok {
			return fmt.Errorf("unknown profile: %s", cr.currentProfileName)
		}
	}

	// If we have rules but no current profile set, find the matching rule and
	// set the profile. Scanning raw manifests does not require a renderer, so
	// a match is only mandatory when rendering was requested.
	if cr.currentProfile == nil && len(cr.allRules) > 0 {
		pName, p, err := cr.FindProfile(cr.path)
		switch {
		case err == nil:
			cr.currentProfileName = pName
			cr.currentProfile = p
		case errors.Is(err, ErrNoProfileForPath) && !cr.render && !cr.renderOnly:
			logger.DebugContext(ctx, "no profile matched, scanning raw manifests",
				slog.String("path", cr.path),
			)
		default:
			return err
		}
	}

	if cr.currentProfile == nil && (cr.render || cr.renderOnly) {
		return fmt.Errorf("%w: %s", ErrNoProfileForPath, cr.path)
	}

	if len(cr.extraArgs) > 0 && cr.currentProfile != nil {
		err := cr.setExtraArgs()
		if err != nil {
			return err
		}
	}

	if cr.watch {
		err := cr.watchSource(ctx)
		if err != nil {
			return err
		}
	}

	if cr.currentProfile != nil && cr.currentProfile.Hooks != nil {
		for _, hook := range cr.currentProfile.Hooks.Init {
			hr, err := hook.Exec(ctx, cr.path)
			if err != nil && hr != nil {
				return fmt.Errorf("%w: init: %w\n%s\n%s", profile.ErrHookExecution, err, hr.Stdout, hr.Stderr)
			} else if err != nil {
				return fmt.Errorf("%w: init: %w", profile.ErrHookExecution, err)
			}
		}
	}

	if cr.scanner.Init != nil {
		hr, err := cr.scanner.Init.Exec(ctx, cr.path)
		if err != nil && hr != nil {
			return fmt.Errorf("%w: init: %w\n%s\n%s", profile.ErrHookExecution, err, hr.Stdout, hr.Stderr)
		} else if err != nil {
			return fmt.Errorf("%w: init: %w", profile.ErrHookExecution, err)
		}
	}

	cr.broadcast(NewEventConfigure(ctx))
	logger.DebugContext(ctx, "configured runner",
		slog.String("path", cr.path),
		slog.String("scanner", cr.scanner.String()),
		slog.Bool("watch", cr.watch),
		slog.Bool("render", cr.render || cr.renderOnly),
	)

	return nil
}

type RunnerOpt func(cr *Runner) error

// WithPath sets the path for the runner (relative to the initial root).
// If the path tries to escape the root, it returns an error early to avoid
// runtime errors deeper in the stack.
func WithPath(path string) RunnerOpt {
	return func(cr *Runner) error {
		path = filepath.Clean(path)

		_, err := cr.root.Stat(path)
		if err != nil {
			return fmt.Errorf("stat path %q: %w", path, err)
		}

		cr.path = path

		return nil
	}
}

// WithWatch sets the watch flag for the runner.
func WithWatch(watch bool) RunnerOpt {
	return func(cr *Runner) error {
		cr.watch = watch

		return nil
	}
}

// WithProfile sets a specific profile to use.
func WithProfile(name string) RunnerOpt {
	return func(cr *Runner) error {
		cr.currentProfileName = name
		cr.currentProfile = nil

		return nil
	}
}

// WithCustomProfile sets a custom profile to use.
func WithCustomProfile(name string, p *profile.Profile) RunnerOpt {
	return func(cr *Runner) error {
		cr.currentProfile = p
		cr.currentProfileName = name
		cr.profiles[name] = p

		return nil
	}
}

// WithAutoProfile configures the runner to determine the profile via rules.
func WithAutoProfile() RunnerOpt {
	return func(cr *Runner) error {
		cr.currentProfile = nil
		cr.currentProfileName = ""

		return nil
	}
}

// WithExtraArgs sets additional arguments to pass to the renderer.
// This will override defined ExtraArgs on whatever profile was selected.
func WithExtraArgs(args ...string) RunnerOpt {
	return func(cr *Runner) error {
		cr.extraArgs = args

		return nil
	}
}

// WithRules sets multiple rules from which the first matching rule will be used.
func WithRules(rs []*rule.Rule) RunnerOpt {
	return func(cr *Runner) error {
		// Store all rules for later use.
		cr.allRules = rs

		// Note: We don't select the initial profile here because profiles might not be loaded yet.
		// The initial profile selection will happen in NewRunner after all options are processed.
		return nil
	}
}

// WithProfiles adds additional profiles to the runner's profile map.
// This allows profiles to be available for switching even if they don't have associated rules.
func WithProfiles(profiles map[string]*profile.Profile) RunnerOpt {
	return func(cr *Runner) error {
		cr.profiles = profiles

		return nil
	}
}

// WithScanner sets the policy scanner to execute.
func WithScanner(s *Scanner) RunnerOpt {
	return func(cr *Runner) error {
		cr.scanner = s

		return nil
	}
}

// WithRender renders the target with the selected profile and scans the
// staged output instead of the raw manifests.
func WithRender(render bool) RunnerOpt {
	return func(cr *Runner) error {
		cr.render = render

		return nil
	}
}

// WithRenderOnly renders the target and skips the scan.
func WithRenderOnly(renderOnly bool) RunnerOpt {
	return func(cr *Runner) error {
		cr.renderOnly = renderOnly

		return nil
	}
}

// WithOutputDir sets the directory that receives staged renders, scanner
// reports, and summaries. Defaults to the current working directory.
func WithOutputDir(dir string) RunnerOpt {
	return func(cr *Runner) error {
		cr.outputDir = dir

		return nil
	}
}

// WithExclude drops discovered manifests whose path matches the pattern.
func WithExclude(pattern string) RunnerOpt {
	return func(cr *Runner) error {
		if pattern == "" {
			cr.exclude = nil

			return nil
		}

		lr := execs.NewLazyRegexp(pattern)

		_, err := lr.Get()
		if err != nil {
			return fmt.Errorf("exclude pattern: %w", err)
		}

		cr.exclude = lr

		return nil
	}
}

type ProfileMatch struct {
	Profile *profile.Profile
	Name    string
}

func (cr *Runner) FindProfile(path string) (string, *profile.Profile, error) {
	matches, err := cr.FindProfiles(path)
	if err != nil {
		return "", nil, err
	}

	if len(matches) == 0 {
		return "", nil, fmt.Errorf("%w: no matching profile found", ErrNoProfileForPath)
	}

	// Return the highest priority match.
	return matches[0].Name, matches[0].Profile, nil
}

// FindProfiles finds matching profiles for the given path using the configured rules.
// The results are returned in order of priority.
func (cr *Runner) FindProfiles(path string) ([]ProfileMatch, error) {
	path = filepath.Clean(path)

	fileInfo, err := cr.root.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	matches := []ProfileMatch{}

	if fileInfo.IsDir() {
		// Path is a directory, find matching files inside.
		rules, err := cr.findMatchInDirectory(path)
		if err != nil {
			return nil, err
		}

		for _, r := range rules {
			p, exists := cr.profiles[r.Profile]
			if !exists {
				return nil, fmt.Errorf("profile %q not found for rule", r.Profile)
			}

			matches = append(matches, ProfileMatch{
				Name:    r.Profile,
				Profile: p,
			})
		}
		if len(matches) > 0 {
			return matches, nil
		}
	}

	// Path is a file, check for direct match.
	// Normalize to directory mode: pass parent directory and file list.
	fileDir := filepath.Dir(path)
	for _, r := range cr.allRules {
		if !r.MatchFiles(fileDir, []string{path}) {
			continue
		}

		p, exists := cr.profiles[r.Profile]
		if !exists {
			return nil, fmt.Errorf("profile %q not found for rule", r.Profile)
		}

		matches = append(matches, ProfileMatch{
			Name:    r.Profile,
			Profile: p,
		})
	}
	if len(matches) > 0 {
		return matches, nil
	}

	return nil, fmt.Errorf("%w: no matching rule found", ErrNoProfileForPath)
}

// isFileWatched returns true if the file matched the profile's source expression.
func (cr *Runner) isFileWatched(filePath string) bool {
	if _, isWatched := cr.watchedFiles[filePath]; isWatched {
		return true
	}

	return false
}

func (cr *Runner) GetCurrentProfile() (string, *profile.Profile) {
	return cr.currentProfileName, cr.currentProfile
}

func (cr *Runner) GetProfiles() map[string]*profile.Profile {
	return cr.profiles
}

func (cr *Runner) GetScanner() *Scanner {
	return cr.scanner
}

func (cr *Runner) SetProfile(name string) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	p, exists := cr.profiles[name]
	if !exists {
		return fmt.Errorf("profile %q not found", name)
	}

	cr.currentProfile = p
	cr.currentProfileName = name

	return nil
}

func (cr *Runner) setExtraArgs() error {
	_, p := cr.GetCurrentProfile()

	// Create a copy of the profile to avoid mutating shared profiles.
	profileCopy := *p
	profileCopy.ExtraArgs = cr.extraArgs
	err := profileCopy.Build() // Rebuild the profile to apply changes.
	if err != nil {
		return fmt.Errorf("rebuild profile with extra args: %w", err)
	}

	// Update the current profile with the copy.
	cr.currentProfile = &profileCopy

	return nil
}

// DiscoverManifests lists every manifest file under the configured path,
// sorted by path. The listing is not affected by rules or profiles, only by
// the exclude pattern.
func (cr *Runner) DiscoverManifests() ([]string, error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	return discoverManifests(cr.root.FS(), cr.path, cr.exclude)
}

func (cr *Runner) watchSource(ctx context.Context) error {
	p := cr.currentProfile

	files, err := listFiles(cr.root.FS(), cr.path, defaultMaxDepth)
	if err != nil {
		return err
	}

	var matchedFiles []string
	if p != nil {
		if ok, mf := p.MatchFiles(cr.path, files); ok {
			matchedFiles = mf
		}
	} else {
		// Without a profile there is no source expression, so watch the
		// manifests themselves.
		for _, file := range files {
			if IsManifest(file) {
				matchedFiles = append(matchedFiles, file)
			}
		}
	}

	cr.watchedFiles = make(map[string]struct{})
	for _, file := range matchedFiles {
		dir := filepath.Dir(file)

		// Convert relative path to absolute path for fsnotify.
		absDir, err := cr.root.Open(dir)
		if err != nil {
			return fmt.Errorf("open directory %q in root: %w", dir, err)
		}

		// Clean so that watching "." does not leave a trailing "/." behind,
		// which would never match fsnotify event names.
		absDirPath := filepath.Clean(absDir.Name())
		absFilePath := filepath.Join(absDirPath, filepath.Base(file))

		err = absDir.Close()
		if err != nil {
			return fmt.Errorf("close directory %q: %w", absDirPath, err)
		}

		err = cr.watcher.Add(absDirPath)
		if err != nil {
			return fmt.Errorf("add path to watcher: %w", err)
		}

		cr.watchedDirs[absDirPath] = struct{}{}
		cr.watchedFiles[absFilePath] = struct{}{}
	}

	log.WithContext(ctx).DebugContext(ctx, "added file watchers",
		slog.String("path", cr.path),
		slog.Int("count", len(cr.watchedDirs)),
	)

	return nil
}

func (cr *Runner) removeWatchers(ctx context.Context) {
	if cr.watcher == nil || len(cr.watchedDirs) == 0 {
		return
	}

	logger := log.WithContext(ctx)

	removedCount := 0
	for dir := range cr.watchedDirs {
		err := cr.watcher.Remove(dir)
		if errors.Is(err, fsnotify.ErrNonExistentWatch) {
			continue
		}
		if err != nil {
			logger.ErrorContext(ctx, "remove path from watcher", slog.Any("err", err))
		}

		removedCount++
	}

	logger.DebugContext(ctx, "removed file watchers",
		slog.String("path", cr.path),
		slog.Int("count", removedCount),
	)

	clear(cr.watchedDirs)
	clear(cr.watchedFiles)
}

// Subscribe allows other components to listen for scan events.
func (cr *Runner) Subscribe(ch chan<- Event) {
	cr.listeners = append(cr.listeners, ch)
}

func (cr *Runner) broadcast(evt Event) {
	ctx := evt.GetContext()

	log.WithContext(ctx).DebugContext(ctx, "broadcasting event",
		slog.String("event", fmt.Sprintf("%T", evt)),
	)

	for _, ch := range cr.listeners {
		ch <- evt
	}
}

// SendEvent allows external components to send events to all listeners.
func (cr *Runner) SendEvent(evt Event) {
	cr.broadcast(evt)
}

// RunOnEvent listens for file system events and runs the scan in response.
// The result should be collected via [Runner.Subscribe].
func (cr *Runner) RunOnEvent() {
	for {
		select {
		case evt, ok := <-cr.watcher.Events:
			if !ok {
				return
			}

			if !cr.isFileWatched(evt.Name) {
				continue
			}

			// Ignore events that are not related to file content changes.
			if evt.Has(fsnotify.Chmod) {
				continue
			}

			// Create a new context for this scan.
			ctx := context.Background()
			logger := log.WithContext(ctx)

			_, p := cr.GetCurrentProfile()
			if p != nil && p.Reload != "" {
				matched, err := p.MatchFileEvent(evt.Name, evt.Op)
				if err != nil {
					logger.ErrorContext(ctx, "match file event",
						slog.String("event", evt.String()),
						slog.Any("error", err),
					)
					cr.broadcast(NewEventEnd(ctx,
						NewResult(TypeScan, WithError(fmt.Errorf("match file event: %w", err))),
					))

					continue
				}
				if !matched {
					continue
				}
			}

			// Run the scan in a goroutine so we can handle cancellation properly.
			go cr.RunContext(ctx)

		case err, ok := <-cr.watcher.Errors:
			if !ok {
				return
			}

			cr.broadcast(NewEventEnd(
				context.Background(),
				NewResult(TypeScan, WithError(err)),
			))
		}
	}
}

// Watch enables file watching for the configured source files. Events can be
// handled by calling [Runner.RunOnEvent].
func (cr *Runner) Watch() error {
	return cr.Configure(WithWatch(true))
}

func (cr *Runner) Close() {
	err := cr.watcher.Close()
	if err != nil {
		slog.Error("close watcher", slog.Any("err", err))
	}
}

func (cr *Runner) String() string {
	if cr.currentProfile != nil {
		return fmt.Sprintf("%s: %s", cr.currentProfileName, cr.currentProfile.String())
	}

	return cr.scanner.String()
}

// Run executes the scan pipeline for the configured path.
func (cr *Runner) Run() Result {
	return cr.RunContext(context.Background())
}

// RunContext executes the scan pipeline for the configured path: discover
// manifests, optionally render them with the selected profile, run the policy
// scanner, aggregate its JSON report, and write a Markdown summary.
// The context can be used for cancellation, timeouts, and tracing.
func (cr *Runner) RunContext(ctx context.Context) Result {
	cr.mu.Lock()

	var (
		path       = cr.path
		pName      = cr.currentProfileName
		p          = cr.currentProfile
		s          = cr.scanner
		exclude    = cr.exclude
		outputDir  = cr.outputDir
		outDir     = filepath.Join(cr.outputDir, scanOutputDir)
		render     = cr.render || cr.renderOnly
		renderOnly = cr.renderOnly
	)

	ctx, span := cr.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("scanner", s.Command.Command),
		attribute.String("path", path),
	))
	defer span.End()

	// Cancel any currently running scan.
	if cr.cancelFunc != nil {
		// Note: The cancel event is broadcast by the canceled goroutine.
		cr.cancelFunc()
	}

	// Create a new context for this scan.
	ctx, cr.cancelFunc = context.WithCancel(ctx)

	cr.mu.Unlock()

	cr.broadcast(NewEventStart(ctx, TypeScan))

	res := NewResult(TypeScan)
	res.Target = path
	res.Profile = pName

	finish := func(res Result) Result {
		res.Duration = time.Since(res.Timestamp)

		// Check if the scan was canceled.
		if res.Error != nil && errors.Is(ctx.Err(), context.Canceled) {
			cr.broadcast(NewEventCancel(ctx))

			return res
		}

		end := NewEventEnd(ctx, res)
		cr.broadcast(end)

		return Result(end)
	}

	fileInfo, err := cr.root.Stat(path)
	if err != nil {
		res.Error = fmt.Errorf("stat path: %w", err)

		return finish(res)
	}

	err = cr.discover(ctx, path, exclude, render, &res)
	if err != nil {
		res.Error = err

		return finish(res)
	}

	var (
		scanTarget       = path
		scanTargetIsFile = !fileInfo.IsDir()
	)

	if render {
		err := cr.renderTarget(ctx, p, path, outputDir, &res)
		if err != nil {
			res.Error = err

			return finish(res)
		}

		if renderOnly {
			return finish(res)
		}

		scanTarget = res.Manifest
		scanTargetIsFile = true
	}

	err = cr.runScanner(ctx, s, scanTarget, scanTargetIsFile, outDir, &res)
	if err != nil {
		res.Error = err

		return finish(res)
	}

	reports, err := cr.loadReport(ctx, s, outDir, &res)
	if err != nil {
		res.Error = err

		return finish(res)
	}

	err = cr.writeSummary(ctx, reports, outDir, &res)
	if err != nil {
		res.Error = err

		return finish(res)
	}

	return finish(res)
}

// discover walks the target and records every manifest file. When the target
// will not be rendered, the discovered manifests are also parsed so the
// result carries the resources the scanner will see.
func (cr *Runner) discover(ctx context.Context, path string, exclude *execs.LazyRegexp, render bool, res *Result) error {
	ctx, span := cr.tracer.Start(ctx, "discover", trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	files, err := discoverManifests(cr.root.FS(), path, exclude)
	if err != nil {
		return err
	}

	logger := log.WithContext(ctx)
	logger.DebugContext(ctx, "discovered manifests",
		slog.String("path", path),
		slog.Int("count", len(files)),
	)

	if render {
		// The rendered output determines the resources instead.
		return nil
	}

	for _, file := range files {
		data, err := fs.ReadFile(cr.root.FS(), file)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable manifest",
				slog.String("file", file),
				slog.Any("error", err),
			)

			continue
		}

		objects, err := kube.SplitYAML(data)
		if err != nil {
			// The scanner reports invalid manifests itself.
			logger.WarnContext(ctx, "invalid manifest",
				slog.String("file", file),
				slog.Any("error", err),
			)
		}

		res.Resources = append(res.Resources, objects...)
	}

	return nil
}

// renderTarget renders path with the profile and stages the output as a
// single manifest file under the output directory.
func (cr *Runner) renderTarget(ctx context.Context, p *profile.Profile, path, outputDir string, res *Result) error {
	ctx, span := cr.tracer.Start(ctx, "render", trace.WithAttributes(
		attribute.String("command", p.Command.Command),
		attribute.String("path", path),
	))
	defer span.End()

	err := execs.LookPath(p.Command.Command)
	if err != nil {
		return err //nolint:wrapcheck // Return the original error.
	}

	result, err := p.Exec(ctx, path)
	if result != nil {
		res.Stdout = result.Stdout
		res.Stderr = result.Stderr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", p.Command.Command, err)
	}

	renderDir := filepath.Join(outputDir, renderOutputDir, "render-"+time.Now().Format(renderStampFormat))

	err = os.MkdirAll(renderDir, 0o755)
	if err != nil {
		return fmt.Errorf("create render directory: %w", err)
	}

	manifest := filepath.Join(renderDir, renderFileName)

	err = os.WriteFile(manifest, []byte(result.Stdout), 0o644)
	if err != nil {
		return fmt.Errorf("write rendered manifest: %w", err)
	}

	res.Manifest = manifest

	logger := log.WithContext(ctx)
	logger.DebugContext(ctx, "rendered output saved",
		slog.String("path", manifest),
		slog.String("size", humanize.Bytes(uint64(len(result.Stdout)))),
	)

	objects, err := kube.SplitYAML([]byte(result.Stdout))
	if err != nil {
		// The scanner reports invalid manifests itself.
		logger.WarnContext(ctx, "parse rendered output", slog.Any("error", err))
	}

	res.Resources = objects

	return nil
}

// runScanner executes the policy scanner against the target. A nonzero exit
// is not an error here, it indicates the scanner found violations.
func (cr *Runner) runScanner(ctx context.Context, s *Scanner, target string, targetIsFile bool, outputDir string, res *Result) error {
	ctx, span := cr.tracer.Start(ctx, "scan", trace.WithAttributes(
		attribute.String("command", s.Command.Command),
		attribute.String("target", target),
	))
	defer span.End()

	err := os.MkdirAll(outputDir, 0o755)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	result, err := s.Exec(ctx, ".", target, targetIsFile, outputDir)
	if result != nil {
		res.Stdout = result.Stdout
		res.Stderr = result.Stderr
		res.ExitCode = result.ExitCode
	}
	if result == nil && err != nil {
		return fmt.Errorf("%s: %w", s.Command.Command, err)
	}

	logger := log.WithContext(ctx)
	if res.ExitCode == 0 {
		logger.InfoContext(ctx, "scan completed with no policy violations", slog.String("target", target))
	} else {
		logger.WarnContext(ctx, "scan completed with violations",
			slog.String("target", target),
			slog.Int("exitCode", res.ExitCode),
		)
	}

	return nil
}

// loadReport reads the scanner's JSON report and aggregates check totals.
func (cr *Runner) loadReport(ctx context.Context, s *Scanner, outputDir string, res *Result) ([]report.Report, error) {
	ctx, span := cr.tracer.Start(ctx, "report")
	defer span.End()

	reportPath := s.ReportPath(outputDir)

	reports, size, err := loadReports(reportPath)
	if err != nil {
		return nil, err
	}

	res.ReportPath = reportPath
	res.Totals = report.Aggregate(reports)
	res.FailedChecks = report.FailedChecks(reports)

	log.WithContext(ctx).InfoContext(ctx, "json report",
		slog.String("path", reportPath),
		slog.String("size", humanize.Bytes(uint64(size))),
	)

	return reports, nil
}

// writeSummary generates the Markdown summary next to the JSON report.
func (cr *Runner) writeSummary(ctx context.Context, reports []report.Report, outputDir string, res *Result) error {
	ctx, span := cr.tracer.Start(ctx, "summarize")
	defer span.End()

	summaryPath, err := writeSummaryFile(outputDir, reports, time.Now())
	if err != nil {
		return err
	}

	res.SummaryPath = summaryPath

	logger := log.WithContext(ctx)

	info, err := os.Stat(summaryPath)
	if err != nil {
		logger.InfoContext(ctx, "summary generated", slog.String("path", summaryPath))

		return nil
	}

	logger.InfoContext(ctx, "summary generated",
		slog.String("path", summaryPath),
		slog.String("size", humanize.Bytes(uint64(max(0, info.Size())))),
	)

	return nil
}

// findMatchInDirectory looks for matching files in a directory.
// It collects the directory's direct children and allows CEL expressions to
// operate on the entire collection.
func (cr *Runner) findMatchInDirectory(dirPath string) ([]*rule.Rule, error) {
	files, err := listFiles(cr.root.FS(), dirPath, 1)
	if err != nil {
		return nil, err
	}

	// Try each rule with the full file collection.
	matchedRules := []*rule.Rule{}
	for _, r := range cr.allRules {
		if r.MatchFiles(dirPath, files) {
			matchedRules = append(matchedRules, r)
		}
	}
	if len(matchedRules) > 0 {
		return matchedRules, nil
	}

	return nil, fmt.Errorf("%w: no matching files in %s", ErrNoProfileForPath, dirPath)
}

// loadReports reads and parses the scanner's JSON report, returning the
// parsed reports and the report size in bytes.
func loadReports(path string) ([]report.Report, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read report: %w", err)
	}

	reports, err := report.Load(data)
	if err != nil {
		return nil, 0, fmt.Errorf("load report %q: %w", path, err)
	}

	return reports, len(data), nil
}

// writeSummaryFile writes the Markdown summary for reports into dir and
// returns its path.
func writeSummaryFile(dir string, reports []report.Report, at time.Time) (string, error) {
	path := filepath.Join(dir, report.SummaryFileName(at))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create summary: %w", err)
	}

	err = report.WriteSummary(f, reports, at)
	if err != nil {
		_ = f.Close()

		return "", err
	}

	err = f.Close()
	if err != nil {
		return "", fmt.Errorf("close summary: %w", err)
	}

	return path, nil
}
