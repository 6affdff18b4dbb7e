package cli

import (
	"flag"
	"testing"

	"github.com/urfave/cli/v2"
)

// newTestCLIContext builds a minimal *cli.Context with the given flags
// set. flagValues maps flag names to their string values and are marked
// explicitly set (c.IsSet returns true); defaultFlags are registered but
// not set. Grounded on the teacher's cli/cmd.newTestCLIContext helper.
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"mode": "device"}, nil)
	if got := resolveString(c, "mode", "local"); got != "device" {
		t.Errorf("expected CLI value to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"mode": ""})
	if got := resolveString(c, "mode", "device"); got != "device" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"mode": "local"})
	if got := resolveString(c, "mode", ""); got != "local" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal_NilConfigReturnsZeroValue(t *testing.T) {
	if got := configVal(nil, func(c *projectConfig) string { return c.Mode }); got != "" {
		t.Errorf("expected empty string for nil config, got %q", got)
	}
}

func TestConfigVal_NonNilConfig(t *testing.T) {
	cfg := &projectConfig{Mode: "device"}
	if got := configVal(cfg, func(c *projectConfig) string { return c.Mode }); got != "device" {
		t.Errorf("expected device, got %q", got)
	}
}

func TestBuildMode_UnknownModeErrors(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"classpath": ""})
	if _, _, err := buildMode(c, nil, "bogus", "go", ""); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBuildMode_DeviceWithoutWrapperErrors(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{
		"classpath":                "",
		"device-toolchain-wrapper": "",
		"device-s3-bucket":         "",
		"device-s3-prefix":         "",
		"device-s3-region":         "",
		"device-s3-endpoint":       "",
	})
	if _, _, err := buildMode(c, nil, "device", "go", ""); err == nil {
		t.Error("expected error when --device-toolchain-wrapper is missing")
	}
}

func TestBuildNotifier_NoTypeReturnsNil(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"notify": "", "notify-url": ""})
	notifier, err := buildNotifier(c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier != nil {
		t.Error("expected nil notifier when --notify is unset")
	}
}

func TestBuildNotifier_UnknownTypeErrors(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"notify": "carrier-pigeon", "notify-url": "x"}, nil)
	if _, err := buildNotifier(c, nil); err == nil {
		t.Error("expected error for unknown notifier type")
	}
}

func TestBuildNotifier_MissingURLErrors(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"notify": "webhook"}, map[string]string{"notify-url": ""})
	if _, err := buildNotifier(c, nil); err == nil {
		t.Error("expected error when --notify-url is missing")
	}
}

func TestEmptyExpectations_AlwaysMisses(t *testing.T) {
	_, ok := emptyExpectations{}.Get("anything")
	if ok {
		t.Error("expected emptyExpectations.Get to always report a miss")
	}
}
