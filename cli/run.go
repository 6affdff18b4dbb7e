package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/actiondriver/classpath"
	"github.com/justapithecus/actiondriver/discover"
	"github.com/justapithecus/actiondriver/driver"
	"github.com/justapithecus/actiondriver/expectations"
	"github.com/justapithecus/actiondriver/log"
	"github.com/justapithecus/actiondriver/metrics"
	"github.com/justapithecus/actiondriver/mode/device"
	"github.com/justapithecus/actiondriver/mode/local"
	"github.com/justapithecus/actiondriver/notify"
	"github.com/justapithecus/actiondriver/notify/redis"
	"github.com/justapithecus/actiondriver/notify/webhook"
	"github.com/justapithecus/actiondriver/progress"
	"github.com/justapithecus/actiondriver/report/xmlreport"
	"github.com/justapithecus/actiondriver/types"
)

// Exit codes. A configuration error (bad config, mode setup failure) and
// a driver-level error (a failed BuildAndRun setup, or starvation) each
// have their own code, distinct from ordinary test failures, so CI can
// tell "the suite ran and something failed" apart from "the suite never
// ran".
const (
	exitSuccess      = 0
	exitTestFailures = 1
	exitConfigError  = 2
	exitDriverError  = 3
)

// RunCommand returns the `run` command: the only command that executes
// work. Grounded on the teacher's cli/cmd.RunCommand shape (an optional
// --config YAML file merged with CLI flags, CLI taking precedence).
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Build and run a set of test actions",
		UsageText: `actiondriver run --file <path> [--file <path> ...] [options]

EXAMPLES:
  # Run two local Go actions
  actiondriver run --file ./actions/Widget.go --file ./actions/Gadget.go

  # Run against class names with an expectations file
  actiondriver run --class com.example.WidgetTest \
    --expectations ./expectations.yaml

  # Run on a remote device, uploading the built artifact to S3 first
  actiondriver run --mode device --file ./actions/Widget.go \
    --device-toolchain-wrapper ./bin/device-wrapper \
    --device-s3-bucket my-bucket --device-s3-prefix actiondriver`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to YAML project config file"},
			&cli.StringFlag{Name: "run-id", Usage: "Run ID (default: a generated UUID)"},
			&cli.StringSliceFlag{Name: "file", Usage: "Source file to build and run (repeatable)"},
			&cli.StringSliceFlag{Name: "class", Usage: "Fully-qualified class name to build and run (repeatable)"},
			&cli.StringFlag{Name: "mode", Usage: "Execution mode: local or device", Value: "local"},
			&cli.StringFlag{Name: "work-dir", Usage: "Working directory for build artifacts"},
			&cli.StringFlag{Name: "go-bin", Usage: "Path to the go toolchain binary", Value: "go"},
			&cli.StringSliceFlag{Name: "classpath", Usage: "Directory to index for classpath suggestions (repeatable)"},
			&cli.StringFlag{Name: "expectations", Usage: "Path to a YAML expectations file"},
			&cli.StringFlag{Name: "report-dir", Usage: "Directory to write JUnit-style XML reports into"},
			&cli.IntFlag{Name: "num-runner-threads", Usage: "Number of concurrent runner threads", Value: 1},
			&cli.IntFlag{Name: "first-monitor-port", Usage: "Base TCP port for per-runner monitor listeners", Value: 9000},
			&cli.IntFlag{Name: "default-monitor-port", Usage: "Monitor port used when --num-runner-threads=1", Value: 8080},
			&cli.DurationFlag{Name: "monitor-timeout", Usage: "How long a monitor listener waits for its child to connect", Value: 30 * time.Second},
			&cli.DurationFlag{Name: "small-timeout", Usage: "Per-outcome kill budget for untagged expectations", Value: 30 * time.Second},
			&cli.DurationFlag{Name: "large-timeout", Usage: `Per-outcome kill budget for expectations tagged "large"`, Value: 10 * time.Minute},
			&cli.DurationFlag{Name: "starvation-timeout", Usage: "How long a runner waits on the ready queue before declaring starvation", Value: 5 * time.Minute},
			&cli.DurationFlag{Name: "await-timeout", Usage: "How long the driver waits for the runner pool to finish", Value: 28 * 24 * time.Hour},
			&cli.IntFlag{Name: "ready-queue-capacity", Usage: "Bounded ready-queue capacity between builders and runners", Value: 4},
			&cli.StringFlag{Name: "device-toolchain-wrapper", Usage: "Path to the on-device build/deploy wrapper (device mode)"},
			&cli.StringFlag{Name: "device-s3-bucket", Usage: "S3 bucket for device-mode artifact upload (optional)"},
			&cli.StringFlag{Name: "device-s3-prefix", Usage: "S3 key prefix for device-mode artifact upload"},
			&cli.StringFlag{Name: "device-s3-region", Usage: "AWS region for device-mode artifact upload"},
			&cli.StringFlag{Name: "device-s3-endpoint", Usage: "Custom S3 endpoint for S3-compatible providers (R2, MinIO)"},
			&cli.BoolFlag{Name: "device-s3-path-style", Usage: "Force path-style addressing for S3 (required by R2, MinIO)"},
			&cli.StringFlag{Name: "notify", Usage: "Completion notifier: webhook or redis"},
			&cli.StringFlag{Name: "notify-url", Usage: "Notifier endpoint URL (webhook URL or Redis connection URL)"},
			&cli.StringFlag{Name: "notify-channel", Usage: "Pub/sub channel name for the redis notifier"},
			&cli.DurationFlag{Name: "notify-timeout", Usage: "Per-notification timeout"},
			&cli.IntFlag{Name: "notify-retries", Usage: "Notifier retry attempts", Value: -1},
			&cli.BoolFlag{Name: "progress", Usage: "Render a live progress TUI while the run executes"},
			&cli.BoolFlag{Name: "quiet", Usage: "Suppress the end-of-run summary"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	var cfg *projectConfig
	if path := c.String("config"); path != "" {
		loaded, err := loadProjectConfig(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitConfigError)
		}
		cfg = loaded
	}

	files := c.StringSlice("file")
	classNames := c.StringSlice("class")
	if len(files) == 0 && len(classNames) == 0 {
		return cli.Exit("at least one --file or --class is required", exitConfigError)
	}

	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.New().String()
	}

	driverConfig := types.Config{
		LocalTemp:          resolveString(c, "work-dir", configVal(cfg, func(c *projectConfig) string { return c.WorkDir })),
		NumRunnerThreads:   resolveInt(c, "num-runner-threads", configIntVal(cfg, func(c *projectConfig) int { return c.NumRunnerThreads })),
		FirstMonitorPort:   c.Int("first-monitor-port"),
		DefaultMonitorPort: c.Int("default-monitor-port"),
		MonitorTimeout:     c.Duration("monitor-timeout"),
		SmallTimeout:       c.Duration("small-timeout"),
		LargeTimeout:       c.Duration("large-timeout"),
		StarvationTimeout:  c.Duration("starvation-timeout"),
		AwaitTimeout:       c.Duration("await-timeout"),
		ReadyQueueCapacity: c.Int("ready-queue-capacity"),
	}
	if driverConfig.NumRunnerThreads <= 0 {
		driverConfig.NumRunnerThreads = 1
	}

	modeName := resolveString(c, "mode", configVal(cfg, func(c *projectConfig) string { return c.Mode }))
	if modeName == "" {
		modeName = "local"
	}
	goBin := resolveString(c, "go-bin", configVal(cfg, func(c *projectConfig) string { return c.GoBin }))

	builtMode, classpathDirs, err := buildMode(c, cfg, modeName, goBin, driverConfig.LocalTemp)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	var expectationStore types.ExpectationStore = emptyExpectations{}
	if path := resolveString(c, "expectations", configVal(cfg, func(c *projectConfig) string { return c.Expectations })); path != "" {
		store, err := expectations.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load expectations: %v", err), exitConfigError)
		}
		expectationStore = store
	}

	var classpathIndex types.ClassFileIndex
	if len(classpathDirs) > 0 {
		classpathIndex = classpath.Build(classpathDirs)
	}

	var reportPrinter types.XmlReportPrinter
	if dir := resolveString(c, "report-dir", configVal(cfg, func(c *projectConfig) string { return c.ReportDir })); dir != "" {
		reportPrinter = &xmlreport.Printer{Dir: dir}
	}

	notifier, err := buildNotifier(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	var reporter *progress.Reporter
	if c.Bool("progress") {
		reporter = progress.NewReporter()
		go func() {
			if err := progress.Run(reporter, 250*time.Millisecond); err != nil {
				fmt.Fprintf(os.Stderr, "progress TUI exited: %v\n", err)
			}
		}()
	}

	logger := log.NewLogger(log.Scope{RunID: runID, NumRunnerThreads: driverConfig.NumRunnerThreads})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	d := &driver.Driver{
		RunID:          runID,
		Config:         driverConfig,
		Mode:           builtMode,
		Finder:         discover.New(),
		Expectations:   expectationStore,
		ReportPrinter:  reportPrinter,
		ClasspathIndex: classpathIndex,
		Notifier:       notifier,
		Metrics:        metrics.NewCollector(runID),
		Progress:       reporter,
		Logger:         logger,
	}

	result, err := d.BuildAndRun(ctx, files, classNames)
	if err != nil {
		return cli.Exit(fmt.Sprintf("driver failed: %v", err), exitDriverError)
	}

	if !c.Bool("quiet") {
		fmt.Printf("run_id=%s\n", runID)
	}

	if result.StarvationError {
		return cli.Exit("", exitDriverError)
	}
	if result.Totals.Failures > 0 {
		return cli.Exit("", exitTestFailures)
	}
	return cli.Exit("", exitSuccess)
}

func buildMode(c *cli.Context, cfg *projectConfig, modeName, goBin, workDir string) (types.Mode, []string, error) {
	classpathDirs := append([]string(nil), c.StringSlice("classpath")...)
	if cfg != nil {
		classpathDirs = append(classpathDirs, cfg.Classpath...)
	}

	switch modeName {
	case "local":
		m := local.New(local.Config{WorkDir: workDir, GoBin: goBin, Classpath: classpathDirs})
		return m, classpathDirs, nil

	case "device":
		wrapper := resolveString(c, "device-toolchain-wrapper", configVal(cfg, func(c *projectConfig) string { return c.Device.ToolchainWrapper }))
		if wrapper == "" {
			return nil, nil, fmt.Errorf("--device-toolchain-wrapper is required for --mode device")
		}
		deviceCfg := device.Config{
			WorkDir:          workDir,
			GoBin:            goBin,
			ToolchainWrapper: wrapper,
			Classpath:        classpathDirs,
		}
		bucket := resolveString(c, "device-s3-bucket", configVal(cfg, func(c *projectConfig) string { return c.Device.S3Bucket }))
		if bucket != "" {
			deviceCfg.S3 = &device.S3Config{
				Bucket:       bucket,
				Prefix:       resolveString(c, "device-s3-prefix", configVal(cfg, func(c *projectConfig) string { return c.Device.S3Prefix })),
				Region:       resolveString(c, "device-s3-region", configVal(cfg, func(c *projectConfig) string { return c.Device.S3Region })),
				Endpoint:     resolveString(c, "device-s3-endpoint", configVal(cfg, func(c *projectConfig) string { return c.Device.S3Endpoint })),
				UsePathStyle: resolveBool(c, "device-s3-path-style", configBoolVal(cfg, func(c *projectConfig) bool { return c.Device.S3PathStyle })),
			}
		}
		m, err := device.New(deviceCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build device mode: %w", err)
		}
		return m, classpathDirs, nil

	default:
		return nil, nil, fmt.Errorf("unknown --mode: %q (supported: local, device)", modeName)
	}
}

func buildNotifier(c *cli.Context, cfg *projectConfig) (notify.Notifier, error) {
	notifyType := resolveString(c, "notify", configVal(cfg, func(c *projectConfig) string { return c.Notify.Type }))
	if notifyType == "" {
		return nil, nil
	}

	url := resolveString(c, "notify-url", configVal(cfg, func(c *projectConfig) string { return c.Notify.URL }))
	if url == "" {
		return nil, fmt.Errorf("--notify-url is required when --notify=%s", notifyType)
	}

	switch notifyType {
	case "webhook":
		cfg := webhook.Config{URL: url}
		if c.Duration("notify-timeout") > 0 {
			cfg.Timeout = c.Duration("notify-timeout")
		}
		if c.Int("notify-retries") >= 0 {
			cfg.Retries = c.Int("notify-retries")
		} else {
			cfg.Retries = webhook.DefaultRetries
		}
		return webhook.New(cfg)

	case "redis":
		channel := resolveString(c, "notify-channel", configVal(cfg, func(c *projectConfig) string { return c.Notify.Channel }))
		cfg := redis.Config{URL: url, Channel: channel}
		if c.Duration("notify-timeout") > 0 {
			cfg.Timeout = c.Duration("notify-timeout")
		}
		if c.Int("notify-retries") >= 0 {
			cfg.Retries = c.Int("notify-retries")
		} else {
			cfg.Retries = redis.DefaultRetries
		}
		return redis.New(cfg)

	default:
		return nil, fmt.Errorf("unknown --notify type: %q (supported: webhook, redis)", notifyType)
	}
}

// emptyExpectations is the default ExpectationStore when --expectations is
// not set: everything is unconstrained (treated as expected SUCCESS by
// driver.Driver.expectationFor's own fallback).
type emptyExpectations struct{}

func (emptyExpectations) Get(name string) (types.Expectation, bool) { return types.Expectation{}, false }

// resolveString returns the CLI flag value if explicitly set, else the
// config value if non-empty, else the urfave default. Grounded on the
// teacher's cli/cmd.resolveString.
func resolveString(c *cli.Context, flag string, configVal string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(flag)
}

func resolveInt(c *cli.Context, flag string, configVal int) int {
	if c.IsSet(flag) {
		return c.Int(flag)
	}
	if configVal != 0 {
		return configVal
	}
	return c.Int(flag)
}

func resolveBool(c *cli.Context, flag string, configVal bool) bool {
	if c.IsSet(flag) {
		return c.Bool(flag)
	}
	if configVal {
		return configVal
	}
	return c.Bool(flag)
}

func configVal(cfg *projectConfig, fn func(*projectConfig) string) string {
	if cfg == nil {
		return ""
	}
	return fn(cfg)
}

func configIntVal(cfg *projectConfig, fn func(*projectConfig) int) int {
	if cfg == nil {
		return 0
	}
	return fn(cfg)
}

func configBoolVal(cfg *projectConfig, fn func(*projectConfig) bool) bool {
	if cfg == nil {
		return false
	}
	return fn(cfg)
}
