// Package device implements types.Mode for the "remote device" execution
// environment named in spec.md §1. It shells out to an on-device build
// toolchain wrapper (external, per spec.md §7's interface boundary) to
// build and install each action, optionally uploading the built artifact
// to an S3-compatible bucket first so a detached device runner can fetch
// it. Grounded on the AWS SDK wiring of the teacher's lode/client_s3.go
// (default credential chain, optional custom endpoint/path-style for
// S3-compatible providers) and the build/env/pipe shape of
// runtime.ExecutorManager, reused here via mode/local's command adapter.
package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/actiondriver/mode/local"
	"github.com/justapithecus/actiondriver/types"
)

// Env vars the toolchain wrapper's invocation of the built artifact reads
// to learn where its Monitor Listener is waiting, mirroring mode/local's
// scheme so both modes can share the same action binaries.
const (
	EnvMonitorHost = local.EnvMonitorHost
	EnvMonitorPort = local.EnvMonitorPort
	// EnvArtifactURI carries the artifact location for the wrapper: the
	// S3 URI when the artifact was uploaded, otherwise the local build path.
	EnvArtifactURI = "ACTIONDRIVER_ARTIFACT_URI"
)

// S3Config configures the optional artifact-upload step. A nil S3Config
// on Config means artifacts are handed to the toolchain wrapper directly
// from the local build output, with no upload.
type S3Config struct {
	// Bucket is the S3 bucket name (required if S3 upload is enabled).
	Bucket string
	// Prefix is the key prefix within the bucket.
	Prefix string
	// Region is the AWS region; empty uses the default credential chain's
	// region resolution.
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

func (c *S3Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("device: S3 bucket is required when S3 upload is enabled")
	}
	return nil
}

// Config configures the device mode.
type Config struct {
	// WorkDir is the local directory build artifacts are written into
	// before upload/handoff.
	WorkDir string
	// GoBin is the path to the go toolchain binary used for the local
	// half of the build (default "go").
	GoBin string
	// ToolchainWrapper is the path to the external on-device build/deploy
	// wrapper invoked to install and launch the built artifact on the
	// target device.
	ToolchainWrapper string
	// S3 enables artifact upload before install when non-nil.
	S3 *S3Config
	// Classpath is returned verbatim from GetClasspath.
	Classpath []string
}

// Mode builds actions locally, optionally stages the artifact in S3, and
// shells out to the device toolchain wrapper to install and run it.
type Mode struct {
	config   Config
	s3Client *s3.Client

	mu       sync.Mutex
	built    map[string]string // action name -> local artifact path
	uploaded map[string]string // action name -> artifact URI, if staged
}

// New constructs a device Mode. GoBin defaults to "go" when empty.
func New(cfg Config) (*Mode, error) {
	if cfg.GoBin == "" {
		cfg.GoBin = "go"
	}
	if cfg.ToolchainWrapper == "" {
		return nil, fmt.Errorf("device: ToolchainWrapper is required")
	}
	if cfg.S3 != nil {
		if err := cfg.S3.validate(); err != nil {
			return nil, err
		}
	}
	return &Mode{
		config:   cfg,
		built:    make(map[string]string),
		uploaded: make(map[string]string),
	}, nil
}

// Prepare creates the working directory and, if S3 upload is configured,
// loads AWS credentials and constructs the S3 client.
func (m *Mode) Prepare(ctx context.Context) error {
	if m.config.WorkDir != "" {
		if err := os.MkdirAll(m.config.WorkDir, 0o755); err != nil {
			return err
		}
	}

	if m.config.S3 == nil {
		return nil
	}

	var opts []func(*config.LoadOptions) error
	if m.config.S3.Region != "" {
		opts = append(opts, config.WithRegion(m.config.S3.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("device: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if m.config.S3.Endpoint != "" {
		endpoint := m.config.S3.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if m.config.S3.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	m.s3Client = s3.NewFromConfig(awsCfg, s3Opts...)
	return nil
}

// BuildAndInstall builds action's binary locally with `go build`, then,
// if S3 is configured, uploads it so the device-side fetch step can pull
// it down before the toolchain wrapper installs it.
func (m *Mode) BuildAndInstall(ctx context.Context, action types.Action) (*types.Outcome, error) {
	if !action.Runner.Supports() {
		return &types.Outcome{
			Name:    action.Name,
			Result:  types.ResultUnsupported,
			Matters: true,
			Message: "action runner kind is not buildable",
		}, nil
	}
	if action.SourcePath == "" {
		return &types.Outcome{
			Name:    action.Name,
			Result:  types.ResultCompileFailed,
			Matters: true,
			Message: "action has no source path",
		}, nil
	}

	binPath := buildOutputPath(m.config.WorkDir, action.Name)
	cmd := exec.CommandContext(ctx, m.config.GoBin, "build", "-o", binPath, action.SourcePath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &types.Outcome{
			Name:        action.Name,
			Result:      types.ResultCompileFailed,
			OutputLines: splitLines(string(output)),
			Matters:     true,
			Message:     err.Error(),
		}, nil
	}

	m.mu.Lock()
	m.built[action.Name] = binPath
	m.mu.Unlock()

	if m.s3Client == nil {
		return nil, nil
	}

	uri, err := m.upload(ctx, action.Name, binPath)
	if err != nil {
		return &types.Outcome{
			Name:    action.Name,
			Result:  types.ResultCompileFailed,
			Matters: true,
			Message: fmt.Sprintf("artifact upload failed: %v", err),
		}, nil
	}

	m.mu.Lock()
	m.uploaded[action.Name] = uri
	m.mu.Unlock()

	return nil, nil
}

func (m *Mode) upload(ctx context.Context, actionName, binPath string) (string, error) {
	f, err := os.Open(binPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	key := actionName
	if m.config.S3.Prefix != "" {
		key = strings.TrimSuffix(m.config.S3.Prefix, "/") + "/" + actionName
	}

	_, err = m.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.config.S3.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", m.config.S3.Bucket, key), nil
}

// CreateActionCommand invokes the device toolchain wrapper, passing the
// artifact location (an S3 URI if uploaded, otherwise the local path) and
// the monitor host/port via environment variables. The wrapper is
// responsible for getting the artifact onto the device and running it
// there; from this process's point of view it is an ordinary child
// process whose lifecycle is the types.Command contract.
func (m *Mode) CreateActionCommand(ctx context.Context, action types.Action, monitorPort int) (types.Command, error) {
	m.mu.Lock()
	binPath, ok := m.built[action.Name]
	artifactURI, uploaded := m.uploaded[action.Name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("device: action %q was never built", action.Name)
	}

	location := binPath
	if uploaded {
		location = artifactURI
	}

	cmd := exec.CommandContext(ctx, m.config.ToolchainWrapper, action.Name, location)
	cmd.Env = append(os.Environ(),
		EnvMonitorHost+"="+local.DefaultMonitorHost,
		EnvMonitorPort+"="+fmt.Sprint(monitorPort),
		EnvArtifactURI+"="+location,
	)

	return local.NewCommand(cmd), nil
}

// Cleanup removes the local build artifact for action. Any uploaded S3
// object is left in place; device-side fetch retries after a transient
// failure depend on it still being there, and bucket lifecycle rules are
// the operator's concern, not this mode's.
func (m *Mode) Cleanup(ctx context.Context, action types.Action) error {
	m.mu.Lock()
	binPath, ok := m.built[action.Name]
	delete(m.built, action.Name)
	delete(m.uploaded, action.Name)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("device: cleanup %q: %w", action.Name, err)
	}
	return nil
}

// Shutdown is a no-op; see mode/local.Mode.Shutdown for the same
// leave-artifacts-on-disk rationale.
func (m *Mode) Shutdown(ctx context.Context) error {
	return nil
}

// GetClasspath returns the configured classpath.
func (m *Mode) GetClasspath() []string {
	return m.config.Classpath
}

var _ types.Mode = (*Mode)(nil)

func buildOutputPath(workDir, actionName string) string {
	if workDir == "" {
		workDir = "."
	}
	return workDir + "/" + sanitizeName(actionName)
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
