package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradelens",
		Subsystem: "sandbox",
		Name:      "test_run_duration_seconds",
		Help:      "Duration of sandboxed test case runs",
		Buckets:   prometheus.DefBuckets,
	}, []string{"language"})

	runTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradelens",
		Subsystem: "sandbox",
		Name:      "test_run_timeouts_total",
		Help:      "Number of test case runs that hit the timeout",
	}, []string{"language"})

	runFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradelens",
		Subsystem: "sandbox",
		Name:      "test_run_failures_total",
		Help:      "Number of test case runs that resulted in an error",
	}, []string{"language"})
)

// ErrUnsupportedLanguage is returned for languages without a sandbox image.
var ErrUnsupportedLanguage = errors.New("sandbox: unsupported language")

// TestCase is one stdin/expected-stdout check for a code submission.
type TestCase struct {
	Description    string
	Input          string
	ExpectedOutput string
}

// TestResult is the outcome of running one test case.
type TestResult struct {
	Description string
	Passed      bool
	Expected    string
	Actual      string
	TimedOut    bool
	Error       string
}

// Runner executes a student program against a set of test cases.
type Runner interface {
	RunTests(ctx context.Context, language, source string, cases []TestCase) ([]TestResult, error)
}

type languageSpec struct {
	image    string
	filename string
	command  string
}

var languages = map[string]languageSpec{
	"python":     {image: "python:3.11-alpine", filename: "main.py", command: "python main.py < input.txt"},
	"javascript": {image: "node:20-alpine", filename: "main.js", command: "node main.js < input.txt"},
}

// Config groups sandbox runner configuration values.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	Logger        zerolog.Logger
}

// DockerRunner runs test cases in throwaway containers with the network
// disabled and resource limits applied.
type DockerRunner struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerRunner constructs a Docker backed test runner.
func NewDockerRunner(cfg Config) (*DockerRunner, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &DockerRunner{
		client: cli,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/prabalshrestha/grade-lens/pkg/sandbox"),
		logger: cfg.Logger.With().Str("component", "sandbox_runner").Logger(),
	}, nil
}

// RunTests writes the source into a workspace and runs it once per test
// case, feeding the case input on stdin and comparing trimmed stdout.
func (r *DockerRunner) RunTests(parent context.Context, language, source string, cases []TestCase) ([]TestResult, error) {
	spec, ok := languages[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}

	ctx, span := r.tracer.Start(parent, "sandbox.run_tests", trace.WithAttributes(
		attribute.String("language", language),
		attribute.Int("cases", len(cases)),
	))
	defer span.End()

	workspace, err := os.MkdirTemp("", "gradelens-sandbox-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, spec.filename), []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}

	results := make([]TestResult, 0, len(cases))
	for _, tc := range cases {
		result := r.runCase(ctx, language, spec, workspace, tc)
		results = append(results, result)
	}

	span.SetAttributes(attribute.Int("passed", countPassed(results)))

	return results, nil
}

func (r *DockerRunner) runCase(parent context.Context, language string, spec languageSpec, workspace string, tc TestCase) TestResult {
	result := TestResult{
		Description: tc.Description,
		Expected:    strings.TrimSpace(tc.ExpectedOutput),
	}

	if err := os.WriteFile(filepath.Join(workspace, "input.txt"), []byte(tc.Input), 0o644); err != nil {
		result.Error = fmt.Sprintf("write input: %v", err)
		return result
	}

	ctx, cancel := context.WithTimeout(parent, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stdout, timedOut, err := r.runContainer(ctx, spec, workspace)
	runDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
	if timedOut {
		runTimeouts.WithLabelValues(language).Inc()
		result.TimedOut = true
		result.Error = "execution timed out"
		return result
	}
	if err != nil {
		runFailures.WithLabelValues(language).Inc()
		r.logger.Warn().Err(err).Str("language", language).Msg("test case run failed")
		result.Error = err.Error()
		return result
	}

	result.Actual = strings.TrimSpace(stdout)
	result.Passed = result.Actual == result.Expected

	return result
}

func (r *DockerRunner) runContainer(ctx context.Context, spec languageSpec, workspace string) (string, bool, error) {
	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    r.cfg.MemoryLimitMB * 1024 * 1024,
			CPUShares: r.cfg.CPUShares,
		},
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: workspace,
			Target: "/workspace",
		}},
	}

	config := &container.Config{
		Image:           spec.image,
		Cmd:             []string{"sh", "-c", spec.command},
		WorkingDir:      "/workspace",
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}

	resp, err := r.client.ContainerCreate(ctx, config, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", false, fmt.Errorf("container create: %w", err)
	}

	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to remove container")
		}
	}()

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", false, fmt.Errorf("container start: %w", err)
	}

	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNextExit)
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			r.kill(containerID)
			return "", true, nil
		}
		return "", false, fmt.Errorf("container wait: %w", err)
	case <-statusCh:
	case <-ctx.Done():
		r.kill(containerID)
		return "", true, nil
	}

	logsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := r.client.ContainerLogs(logsCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", false, fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return "", false, fmt.Errorf("read logs: %w", err)
	}

	return stdout.String(), false, nil
}

func (r *DockerRunner) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.ContainerKill(killCtx, containerID, "KILL"); err != nil {
		r.logger.Error().Err(err).Str("container_id", containerID).Msg("failed to kill timed out container")
	}
}

// Summarize renders test results as a short plain-text report suitable
// for inclusion in a grading prompt.
func Summarize(results []TestResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Passed %d of %d test case(s).\n", countPassed(results), len(results))
	for i, res := range results {
		label := res.Description
		if label == "" {
			label = fmt.Sprintf("case %d", i+1)
		}
		switch {
		case res.Passed:
			fmt.Fprintf(&b, "- PASS %s\n", label)
		case res.Error != "":
			fmt.Fprintf(&b, "- ERROR %s: %s\n", label, res.Error)
		default:
			fmt.Fprintf(&b, "- FAIL %s: expected %q, got %q\n", label, res.Expected, res.Actual)
		}
	}

	return strings.TrimSpace(b.String())
}

func countPassed(results []TestResult) int {
	n := 0
	for _, res := range results {
		if res.Passed {
			n++
		}
	}

	return n
}
