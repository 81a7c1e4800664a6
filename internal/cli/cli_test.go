package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/haskel/cplxfox/internal/artifact"
	"github.com/haskel/cplxfox/internal/config"
	"github.com/haskel/cplxfox/internal/logger"
	"github.com/haskel/cplxfox/internal/observation"
	"github.com/haskel/cplxfox/internal/server"
	"github.com/haskel/cplxfox/internal/trainer"
)

func TestGetServerURL(t *testing.T) {
	host = "localhost"
	port = 8080

	url := GetServerURL()
	expected := "http://localhost:8080"

	if url != expected {
		t.Errorf("expected %s, got %s", expected, url)
	}
}

func TestGetServerURL_CustomHostPort(t *testing.T) {
	host = "192.168.1.100"
	port = 9000

	url := GetServerURL()
	expected := "http://192.168.1.100:9000"

	if url != expected {
		t.Errorf("expected %s, got %s", expected, url)
	}

	host = "localhost"
	port = 8080
}

func TestIsJSON(t *testing.T) {
	jsonOut = false
	if IsJSON() {
		t.Error("expected false")
	}

	jsonOut = true
	if !IsJSON() {
		t.Error("expected true")
	}

	jsonOut = false
}

func TestGetAuth(t *testing.T) {
	user = "admin"
	password = "secret"

	u, p := GetAuth()
	if u != "admin" || p != "secret" {
		t.Errorf("expected admin:secret, got %s:%s", u, p)
	}

	user = ""
	password = ""
}

func TestSetVersion(t *testing.T) {
	old := Version
	SetVersion("1.2.3")

	if Version != "1.2.3" || rootCmd.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", Version)
	}

	Version = old
}

func TestLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"

	verbose = false
	if got := logLevel(cfg); got != "warn" {
		t.Errorf("expected warn, got %s", got)
	}

	verbose = true
	if got := logLevel(cfg); got != "debug" {
		t.Errorf("expected debug with --verbose, got %s", got)
	}
	verbose = false
}

func TestLoadConfig(t *testing.T) {
	cfgFile = ""
	cfg, err := loadConfig()
	if err != nil || cfg.Artifact.Path != "complexity_estimators.json" {
		t.Errorf("expected defaults without --config, got %v", err)
	}

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := loadConfig(); err == nil {
		t.Error("expected error for unreadable config file")
	}
	cfgFile = ""
}

func TestReadPIDFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "cplxfox.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), pid)
	}

	if _, err := readPIDFile(filepath.Join(dir, "missing.pid")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.pid")
	os.WriteFile(bad, []byte("abc\n"), 0644)
	if _, err := readPIDFile(bad); err == nil {
		t.Error("expected error for invalid PID")
	}
}

func observationsCSV() string {
	var b strings.Builder
	b.WriteString("game,parameters,complexity,nblocks,nmethod,ninsts,ndatawrites,nDataReads\n")
	for shuffles := 70; shuffles < 76; shuffles++ {
		for size := 3; size < 7; size++ {
			c := math.Exp(0.05*float64(shuffles)+0.2*float64(size)) - 1
			fmt.Fprintf(&b, "FifteenPuzzle,shuffles=%d#size=%d,%g,20,4,100,1,8\n", shuffles, size, c)
		}
	}
	for it := 1000; it <= 10000; it += 1000 {
		fmt.Fprintf(&b, "GameOfLife,iterations=%d#mapFilename=glider.json,%g,30,0,60,1,3\n", it, 67+2*float64(it))
	}
	return b.String()
}

// useConfig writes a config file next to the observations and points --config at it.
func useConfig(t *testing.T) (input, artifactPath string) {
	t.Helper()
	dir := t.TempDir()

	input = filepath.Join(dir, "results.csv")
	if err := os.WriteFile(input, []byte(observationsCSV()), 0644); err != nil {
		t.Fatal(err)
	}
	artifactPath = filepath.Join(dir, "models.json")

	path := filepath.Join(dir, "cplxfox.yaml")
	doc := fmt.Sprintf("logging:\n  level: error\ntraining:\n  input: %s\nartifact:\n  path: %s\n", input, artifactPath)
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	return input, artifactPath
}

func TestTrainPredictInspect(t *testing.T) {
	_, artifactPath := useConfig(t)

	var out bytes.Buffer
	trainCmd.SetOut(&out)
	trainCmd.SetErr(&out)
	if err := runTrain(trainCmd, nil); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if !strings.Contains(out.String(), "FifteenPuzzle") || !strings.Contains(out.String(), "GameOfLife") {
		t.Errorf("expected both tasks in report, got:\n%s", out.String())
	}

	if _, err := os.Stat(artifactPath); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	resp, err := predictLocal("GameOfLife", "iterations=5000#mapFilename=other.json")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if math.Abs(resp.Complexity-(67+2*5000)) > 1e-3 {
		t.Errorf("expected complexity near %v, got %v", 67+2*5000, resp.Complexity)
	}

	if _, err := predictLocal("Sudoku", "size=9"); err == nil {
		t.Error("expected error for unknown task")
	}

	out.Reset()
	inspectCmd.SetOut(&out)
	if err := runInspect(inspectCmd, []string{"FifteenPuzzle"}); err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !strings.Contains(out.String(), "log(1 + complexity) = ") {
		t.Errorf("expected equation in output, got:\n%s", out.String())
	}
	if strings.Contains(out.String(), "GameOfLife") {
		t.Error("inspect should only show selected tasks")
	}

	if err := runInspect(inspectCmd, []string{"Sudoku"}); err == nil {
		t.Error("expected error for task missing from artifact")
	}
}

func TestTrain_NothingFitted(t *testing.T) {
	useConfig(t)

	input := filepath.Join(t.TempDir(), "unknown.jsonl")
	os.WriteFile(input, []byte(`{"task":"Sudoku","parameters":"size=9","complexity":3}`+"\n"), 0644)

	var out bytes.Buffer
	trainCmd.SetOut(&out)
	trainCmd.SetErr(&out)
	err := runTrain(trainCmd, []string{input})
	if err == nil || !strings.Contains(err.Error(), ErrNothingTrained.Error()) {
		t.Errorf("expected ErrNothingTrained, got %v", err)
	}
	if !strings.Contains(out.String(), "Sudoku") {
		t.Errorf("expected failure listed, got:\n%s", out.String())
	}
}

func TestRatios(t *testing.T) {
	useConfig(t)

	var out bytes.Buffer
	ratiosCmd.SetOut(&out)

	jsonOut = true
	defer func() { jsonOut = false }()

	if err := runRatios(ratiosCmd, nil); err != nil {
		t.Fatalf("ratios failed: %v", err)
	}

	var ratios []observation.Ratio
	if err := json.Unmarshal(out.Bytes(), &ratios); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(ratios) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(ratios))
	}

	puzzle := ratios[0]
	if puzzle.Task != "FifteenPuzzle" || puzzle.Samples != 24 || puzzle.ReadsPerMethod != 2 || puzzle.BlocksPerMethod != 5 {
		t.Errorf("unexpected ratio %+v", puzzle)
	}
	if gol := ratios[1]; gol.Samples != 0 || gol.InstsPerMethod != 0 {
		t.Errorf("rows without methods should be skipped, got %+v", gol)
	}
}

func TestClient(t *testing.T) {
	input, artifactPath := useConfig(t)

	cfg := config.Default()
	cfg.Artifact.Path = artifactPath
	cfg.Auth.AdminToken = "token"

	log := logger.Discard()
	records, err := observation.NewReader(log).ReadFile(input)
	if err != nil {
		t.Fatal(err)
	}
	report := trainer.New(cfg.Registry(), trainer.DefaultOptions(), log).Train(records)
	store := artifact.NewStore(artifactPath, log)
	if err := store.Save(report.Artifact()); err != nil {
		t.Fatal(err)
	}

	srv, err := server.New(cfg, store, nil, log, "test")
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	h, p, _ := net.SplitHostPort(strings.TrimPrefix(ts.URL, "http://"))
	host = h
	port, _ = strconv.Atoi(p)
	defer func() {
		host = "localhost"
		port = 8080
		adminToken = ""
	}()

	client := NewClient()
	if err := client.Health(); err != nil {
		t.Fatalf("health failed: %v", err)
	}

	resp, err := client.Predict("FifteenPuzzle", "shuffles=72#size=4")
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if resp.Complexity <= 0 || resp.Fingerprint == "" {
		t.Errorf("unexpected response %+v", resp)
	}

	_, err = client.Predict("FifteenPuzzle", "shuffles=72")
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Errorf("expected 422 error, got %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.Host != nil {
		t.Error("expected no host state without an aggregator")
	}
	if len(status.Models.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %v", status.Models.Tasks)
	}

	if _, err := client.Reload(); err == nil {
		t.Error("expected reload without token to fail")
	}

	adminToken = "token"
	reloaded, err := NewClient().Reload()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Fingerprint != resp.Fingerprint {
		t.Error("reloading the same artifact should keep the fingerprint")
	}
}

func TestRenderStatus(t *testing.T) {
	var out bytes.Buffer
	renderStatus(&out, &server.StatusResponse{
		Version: "1.0.0",
		Uptime:  "5s",
		Models:  server.ModelsInfo{Tasks: []string{"A", "B"}, Fingerprint: "abc"},
	})

	for _, want := range []string{"1.0.0", "A, B", "abc"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 20); got != "short" {
		t.Errorf("expected short, got %s", got)
	}
	if got := truncate("CaptureTheFlagWithLongName", 10); got != "Capture..." {
		t.Errorf("expected Capture..., got %s", got)
	}
}
