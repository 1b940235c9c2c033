package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/skan/pkg/kube"
	"github.com/macropower/skan/pkg/scan"
	"github.com/macropower/skan/pkg/version"
)

// ExecutionStatus represents the current state of scan execution.
type ExecutionStatus string

const (
	// StatusIdle indicates no scan is currently executing.
	StatusIdle ExecutionStatus = "idle"
	// StatusRunning indicates a scan is currently executing.
	StatusRunning ExecutionStatus = "running"
	// StatusCompleted indicates the last scan completed successfully.
	StatusCompleted ExecutionStatus = "completed"
	// StatusError indicates the last scan completed with an error.
	StatusError ExecutionStatus = "error"
)

// ExecutionState tracks the current state of scan execution.
type ExecutionState struct {
	Error           error
	Result          *scan.Result
	Status          ExecutionStatus
	CompletionCount int64
	RequestCount    int64
}

// ScanRunner is the subset of [scan.Runner] the MCP server drives.
type ScanRunner interface {
	Subscribe(ch chan<- scan.Event)
	ConfigureContext(ctx context.Context, opts ...scan.RunnerOpt) error
	RunContext(ctx context.Context) scan.Result
}

// Server implements the MCP server for skan.
type Server struct {
	runner          ScanRunner
	server          *mcp.Server
	eventCh         chan scan.Event
	completionCond  *sync.Cond
	tracer          trace.Tracer
	address         string
	currentPath     string
	state           ExecutionState
	completionCount int64
	requestCount    int64
	mu              sync.RWMutex
}

// NewServer creates a new MCP server instance.
func NewServer(address string, runner ScanRunner, initialPath string) (*Server, error) {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	opts := &mcp.ServerOptions{
		Instructions: instructions,
	}

	mcpServer := mcp.NewServer(impl, opts)

	s := &Server{
		address:     address,
		server:      mcpServer,
		runner:      runner,
		eventCh:     make(chan scan.Event, 100),
		tracer:      otel.Tracer("mcp-server"),
		currentPath: initialPath,
		state: ExecutionState{
			Status: StatusIdle,
		},
	}

	s.completionCond = sync.NewCond(&s.mu)

	runner.Subscribe(s.eventCh)

	s.registerTools()

	// Start event processing.
	go s.processEvents()

	return s, nil
}

// registerTools registers all available tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "scan",
		Description: "Scan Kubernetes manifests at a path for policy violations. Waits for the scan to finish and returns the result status and check totals.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "The directory path to scan, relative to the project root. Omit to re-scan the current path.",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleScan))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_summary",
		Description: "Get the Markdown summary of the latest completed scan.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}, WithTracing(s.tracer, s.handleGetSummary))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_findings",
		Description: "List the failed checks from the latest completed scan.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
		},
	}, WithTracing(s.tracer, s.handleListFindings))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_resources",
		Description: "List Kubernetes resources scanned at a particular path. Resources are only available for runs that rendered manifests. You MUST specify a path.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "The directory path to operate on, relative to the project root.",
				},
			},
			Required: []string{"path"},
		},
	}, WithTracing(s.tracer, s.handleListResources))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_resource",
		Description: "Get details of a specific Kubernetes resource. You MUST use inputs from a list_resources output in the resources list EXACTLY.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"apiVersion": {
					Type:        "string",
					Description: "The API version of the resource, if applicable",
				},
				"kind": {
					Type:        "string",
					Description: "The kind of the resource",
				},
				"namespace": {
					Type:        "string",
					Description: "The namespace of the resource, if applicable",
				},
				"name": {
					Type:        "string",
					Description: "The name of the resource",
				},
				"path": {
					Type:        "string",
					Description: "The directory path to operate on, relative to the project root.",
				},
			},
			Required: []string{"kind", "name", "path"},
		},
	}, WithTracing(s.tracer, s.handleGetResource))
}

// processEvents processes scan events in a separate goroutine.
func (s *Server) processEvents() {
	for event := range s.eventCh {
		s.mu.Lock()

		switch e := event.(type) {
		case scan.EventStart:
			s.state.Status = StatusRunning
			s.state.Result = nil
			s.state.Error = nil

		case scan.EventEnd:
			completionCount := atomic.AddInt64(&s.completionCount, 1)
			currentRequestCount := atomic.LoadInt64(&s.requestCount)

			res := scan.Result(e)
			if res.Error != nil {
				s.state.Status = StatusError
				s.state.Error = res.Error
			} else {
				s.state.Status = StatusCompleted
				s.state.Error = nil
			}

			s.state.Result = &res
			s.state.CompletionCount = completionCount
			s.state.RequestCount = currentRequestCount

			// Broadcast to all waiters.
			s.completionCond.Broadcast()

		case scan.EventCancel:
			s.state.Status = StatusIdle
			s.state.Result = nil
			s.state.Error = nil
		}

		s.mu.Unlock()
	}
}

func (s *Server) pathChanged(newPath string) bool {
	// If no path provided, use current path (no-op).
	if newPath == "" {
		return false
	}

	// If path hasn't changed, this is a no-op.
	if s.currentPath == newPath {
		return false
	}

	return true
}

// reconfigure points the runner at a new path. Callers must hold the lock.
func (s *Server) reconfigure(ctx context.Context, path string) (bool, error) {
	if !s.pathChanged(path) {
		return false, nil
	}

	err := s.runner.ConfigureContext(ctx,
		scan.WithAutoProfile(),
		scan.WithPath(path),
	)
	if err != nil {
		return false, fmt.Errorf("reconfigure runner with path %q: %w", path, err)
	}

	s.currentPath = path

	return true, nil
}

// triggerRun starts a scan in the background. Callers must hold the lock.
func (s *Server) triggerRun(ctx context.Context) int64 {
	requestNumber := atomic.AddInt64(&s.requestCount, 1)
	go s.runner.RunContext(ctx)

	return requestNumber
}

// reload reconfigures and re-runs when the path changed. It returns 0 when
// there is nothing to do. Callers must hold the lock.
func (s *Server) reload(ctx context.Context, path string) (int64, error) {
	changed, err := s.reconfigure(ctx, path)
	if err != nil || !changed {
		return 0, err
	}

	return s.triggerRun(ctx), nil
}

// waitForCompletion blocks until any scan execution completes after the given request number or the context is canceled.
func (s *Server) waitForCompletion(ctx context.Context, requestNumber int64) error {
	if requestNumber == 0 {
		return nil // No reload happened.
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Create a channel for context cancellation.
	ctxDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(ctxDone)
		s.completionCond.Broadcast() // Wake up the condition variable.
	}()

	// Check if we already have a recent completion.
	for {
		if s.state.Status == StatusCompleted || s.state.Status == StatusError {
			if s.state.RequestCount >= requestNumber {
				return nil
			}
		}

		// Check if context was canceled.
		select {
		case <-ctxDone:
			return fmt.Errorf("wait for completion canceled: %w", ctx.Err())
		default:
		}

		// Wait for the next completion.
		s.completionCond.Wait()
	}
}

// handleScan handles the scan tool call.
func (s *Server) handleScan(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ScanParams],
) (*mcp.CallToolResultFor[ScanResult], error) {
	startTime := time.Now()

	s.mu.Lock()

	_, err := s.reconfigure(ctx, params.Arguments.Path)
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("reconfigure runner: %w", err)
	}

	requestNumber := s.triggerRun(ctx)

	s.mu.Unlock()

	err = s.waitForCompletion(ctx, requestNumber)
	if err != nil {
		return nil, fmt.Errorf("wait for completion: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := ScanResult{
		Status: string(s.state.Status),
	}

	if s.state.Error != nil {
		result.Error = s.state.Error.Error()
	}

	if s.state.Result != nil {
		populateScanResult(&result, s.state.Result)
	}

	slog.DebugContext(ctx, "scan execution completed",
		slog.String("status", string(s.state.Status)),
		slog.Duration("duration", time.Since(startTime)),
	)

	return createScanResult(result), nil
}

// handleGetSummary handles the get_summary tool call.
func (s *Server) handleGetSummary(
	_ context.Context,
	_ *mcp.ServerSession,
	_ *mcp.CallToolParamsFor[GetSummaryParams],
) (*mcp.CallToolResultFor[GetSummaryResult], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := GetSummaryResult{
		Status: string(s.state.Status),
	}

	if s.state.Error != nil {
		result.Error = s.state.Error.Error()
	}

	if s.state.Result == nil || s.state.Result.SummaryPath == "" {
		return createGetSummaryResult(result), nil
	}

	result.SummaryPath = s.state.Result.SummaryPath

	data, err := os.ReadFile(s.state.Result.SummaryPath)
	if err != nil {
		return nil, fmt.Errorf("read summary %q: %w", s.state.Result.SummaryPath, err)
	}

	result.Summary = string(data)

	return createGetSummaryResult(result), nil
}

// handleListFindings handles the list_findings tool call.
func (s *Server) handleListFindings(
	_ context.Context,
	_ *mcp.ServerSession,
	_ *mcp.CallToolParamsFor[ListFindingsParams],
) (*mcp.CallToolResultFor[ListFindingsResult], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := ListFindingsResult{
		Status:   string(s.state.Status),
		Findings: []Finding{},
	}

	if s.state.Error != nil {
		result.Error = s.state.Error.Error()
	}

	if s.state.Result != nil {
		populateFindings(&result, s.state.Result)
	}

	return createListFindingsResult(result), nil
}

// handleListResources handles the list_resources tool call.
func (s *Server) handleListResources(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[ListResourcesParams],
) (*mcp.CallToolResultFor[ListResourcesResult], error) {
	startTime := time.Now()

	s.mu.Lock()

	requestNumber, err := s.reload(ctx, params.Arguments.Path)
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("reconfigure runner: %w", err)
	}

	s.mu.Unlock()

	// Wait for any completion that occurs after our request was made.
	err = s.waitForCompletion(ctx, requestNumber)
	if err != nil {
		return nil, fmt.Errorf("wait for completion: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := ListResourcesResult{
		Status:    string(s.state.Status),
		Resources: []kube.ResourceMetadata{},
	}

	if s.state.Error != nil {
		result.Error = s.state.Error.Error()
	}

	if s.state.Result == nil {
		return createListResourcesResult(result), nil
	}

	populateResultFromResult(&result, s.state.Result)

	toolResult := createListResourcesResult(result)

	slog.DebugContext(ctx, "list_resources execution completed",
		slog.String("status", string(s.state.Status)),
		slog.Int("resource_count", result.ResourceCount),
		slog.Duration("duration", time.Since(startTime)),
	)

	return toolResult, nil
}

// handleGetResource handles the get_resource tool call.
func (s *Server) handleGetResource(
	ctx context.Context,
	_ *mcp.ServerSession,
	params *mcp.CallToolParamsFor[GetResourceParams],
) (*mcp.CallToolResultFor[GetResourceResult], error) {
	s.mu.Lock()

	requestNumber, err := s.reload(ctx, params.Arguments.Path)
	if err != nil {
		s.mu.Unlock()

		return nil, fmt.Errorf("reconfigure runner: %w", err)
	}

	s.mu.Unlock()

	// Wait for any completion that occurs after our request was made.
	err = s.waitForCompletion(ctx, requestNumber)
	if err != nil {
		return nil, fmt.Errorf("wait for completion: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := GetResourceResult{
		Status: string(s.state.Status),
		Found:  false,
	}

	if s.state.Error != nil {
		result.Error = s.state.Error.Error()
	}

	if s.state.Result == nil {
		return createGetResourceResult(result, params.Arguments), nil
	}

	// Search for the requested resource.
	resource := findResource(s.state.Result.Resources, params.Arguments)
	if resource != nil {
		result.Found = true
		result.Resource = &ResourceDetails{
			Metadata: resource.Object.GetMetadata(),
			YAML:     resource.YAML,
		}
	}

	return createGetResourceResult(result, params.Arguments), nil
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

func (s *Server) Close() {
	close(s.eventCh)
	// Wake up any waiting goroutines before closing.
	s.mu.Lock()
	s.completionCond.Broadcast()
	s.mu.Unlock()
}

// Serve starts the MCP server.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve Stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP()
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP() error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)
	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
