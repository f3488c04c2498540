package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/Goosie/nostr-object-identity/internal/config"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	imageDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithoutAuxiliarySignatures())
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	imageDir := filepath.Join(base, "images")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}
	return &cliTestEnv{cfg: cfg, configPath: configPath, imageDir: imageDir}
}

func (e *cliTestEnv) writeImage(t *testing.T, name string, seed uint64) string {
	t.Helper()
	path := filepath.Join(e.imageDir, name)
	if err := os.WriteFile(path, testsupport.EncodePNG(t, testsupport.BlockImage(seed, 512)), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestCLIRegisterCheckVerify(t *testing.T) {
	env := setupCLITestEnv(t)
	first := env.writeImage(t, "first.png", 1)
	second := env.writeImage(t, "second.png", 2)

	out, _, err := runCLI(t, []string{"register", first, "--id", "obj-1", "--label", "red bike"}, env.configPath)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	requireContains(t, out, "Registered obj-1")
	requireContains(t, out, "red bike")

	_, _, err = runCLI(t, []string{"register", first}, env.configPath)
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	requireContains(t, err.Error(), "obj-1")

	out, _, err = runCLI(t, []string{"check", first}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "Duplicate of obj-1")

	out, _, err = runCLI(t, []string{"check", second}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	requireContains(t, out, "No duplicate")

	out, _, err = runCLI(t, []string{"verify", first}, env.configPath)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	requireContains(t, out, "Verified obj-1 via direct stage")
	requireContains(t, out, "Thresholds: direct <= 3, rotation <= 8")

	out, _, err = runCLI(t, []string{"--json", "verify", second}, env.configPath)
	if err != nil {
		t.Fatalf("verify json: %v", err)
	}
	var report struct {
		Matched bool `json:"matched"`
		Stages  []struct {
			Stage string `json:"stage"`
		} `json:"stages"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode verify json: %v\n%s", err, out)
	}
	if report.Matched || len(report.Stages) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCLIRecordsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	img := env.writeImage(t, "object.png", 3)

	out, _, err := runCLI(t, []string{"records", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "No registered objects")

	if _, _, err := runCLI(t, []string{"register", img, "--id", "obj-3"}, env.configPath); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, _, err = runCLI(t, []string{"records", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "obj-3")

	out, _, err = runCLI(t, []string{"--json", "records", "show", "obj-3"}, env.configPath)
	if err != nil {
		t.Fatalf("records show: %v", err)
	}
	var rec struct {
		ID          string `json:"id"`
		Fingerprint struct {
			Hex string `json:"hex"`
		} `json:"fingerprint"`
	}
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.ID != "obj-3" || len(rec.Fingerprint.Hex) != 64 {
		t.Fatalf("unexpected record %+v", rec)
	}

	out, _, err = runCLI(t, []string{"records", "show", "--fingerprint", rec.Fingerprint.Hex}, env.configPath)
	if err != nil {
		t.Fatalf("records show --fingerprint: %v", err)
	}
	requireContains(t, out, "ID:          obj-3")
	if _, _, err := runCLI(t, []string{"records", "show", "--fingerprint", "not-hex"}, env.configPath); err == nil {
		t.Fatal("expected invalid fingerprint to fail")
	}

	out, _, err = runCLI(t, []string{"records", "remove", "obj-3"}, env.configPath)
	if err != nil {
		t.Fatalf("records remove: %v", err)
	}
	requireContains(t, out, "Removed obj-3")

	if _, _, err := runCLI(t, []string{"records", "show", "obj-3"}, env.configPath); err == nil {
		t.Fatal("expected show of removed record to fail")
	}
}

func TestCLIFingerprintAndCompare(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.writeImage(t, "a.png", 4)
	b := env.writeImage(t, "b.png", 5)

	out, _, err := runCLI(t, []string{"--json", "fingerprint", a}, env.configPath)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	var bundle struct {
		Primary struct {
			Hex  string `json:"hex"`
			Kind string `json:"kind"`
		} `json:"primary"`
		Variants []json.RawMessage `json:"variants"`
	}
	if err := json.Unmarshal([]byte(out), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if len(bundle.Primary.Hex) != 64 || bundle.Primary.Kind != "perceptual" || len(bundle.Variants) != 12 {
		t.Fatalf("unexpected bundle: %s", out)
	}

	out, _, err = runCLI(t, []string{"fingerprint", "--primary", a}, env.configPath)
	if err != nil {
		t.Fatalf("fingerprint --primary: %v", err)
	}
	requireContains(t, out, bundle.Primary.Hex)

	out, _, err = runCLI(t, []string{"compare", a, a}, env.configPath)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	requireContains(t, out, "Distance: 0")
	requireContains(t, out, "same object")

	out, _, err = runCLI(t, []string{"compare", a, b}, env.configPath)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	requireContains(t, out, "different")
}

func TestCLIConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "strict_threshold = 3")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestCLIRejectsUnreadableImages(t *testing.T) {
	env := setupCLITestEnv(t)
	bogus := filepath.Join(env.imageDir, "bogus.png")
	if err := os.WriteFile(bogus, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write bogus: %v", err)
	}
	_, _, err := runCLI(t, []string{"check", bogus}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail on undecodable input")
	}
	requireContains(t, err.Error(), "unsupported image")

	if _, _, err := runCLI(t, []string{"check", filepath.Join(env.imageDir, "missing.png")}, env.configPath); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestCLIDoctor(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Registry")
	requireContains(t, out, "0 records")
}
