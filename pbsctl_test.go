package pbsctl_test

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CZERTAINLY/pbsctl/pbs/model"

	"github.com/stretchr/testify/require"
)

var (
	//go:embed testing/*
	testingFS  embed.FS
	pbsctlPath string

	// tmpDir is a function used to create a tempdir
	// -test.keepdir flag says test to use os.MkdirTemp
	// default is t.TempDir, which will be cleaned up
	tmpDir func(t *testing.T) string
)

func TestMain(m *testing.M) {
	var keepTestDir bool
	flag.BoolVar(&keepTestDir, "test.keepdir", false, "use os.TempDir instead of t.TempDir to keep test artifacts")

	flag.Parse()

	if testing.Short() {
		slog.Warn("integration tests with -short are ignored")
		os.Exit(0)
	}

	if !keepTestDir {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			return t.TempDir()
		}
	} else {
		tmpDir = func(t *testing.T) string {
			t.Helper()
			dir, err := os.MkdirTemp("", t.Name()+"*")
			require.NoError(t, err)
			t.Logf("TEMPDIR %s: -test.keepdir used, so it won't be automatically deleted", dir)
			return dir
		}
	}

	if !isExecutable("pbsctl-ci") {
		slog.Warn("cannot locate pbsctl-ci binary, integration tests are skipped: run go build -race -cover -covermode=atomic -o pbsctl-ci ./cmd/pbsctl/ first")
		os.Exit(m.Run())
	}

	var err error
	pbsctlPath, err = filepath.Abs("pbsctl-ci")
	if err != nil {
		slog.Error("can't get abspath for pbsctl-ci", "error", err)
		os.Exit(1)
	}
	coverDir, err := filepath.Abs("coverage")
	if err != nil {
		slog.Error("can't get value for GOCOVERDIR for pbsctl-ci", "error", err)
		os.Exit(1)
	}
	if err := rmRfMkdirp(coverDir); err != nil {
		slog.Error("can't reset GOCOVERDIR for pbsctl-ci", "error", err, "coverdir", coverDir)
		os.Exit(1)
	}
	if err := os.Setenv("GOCOVERDIR", coverDir); err != nil {
		slog.Error("can't set GOCOVERDIR env variable", "error", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// fakeScheduler writes shell scripts standing in for the scheduler
// commands and a configuration pointing to them
func fakeScheduler(t *testing.T) {
	t.Helper()
	if pbsctlPath == "" {
		t.Skip("pbsctl-ci binary not built")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	dir := chDir(t)

	fixture(t, "testing/qnodes.xml")
	fixture(t, "testing/qstat_f.txt")
	fixture(t, "testing/qstat_q_f.txt")

	script(t, "qnodes", `cat "`+dir+`/qnodes.xml"`)
	script(t, "qstat", `case "$*" in
*-Q*) cat "`+dir+`/qstat_q_f.txt" ;;
*) cat "`+dir+`/qstat_f.txt" ;;
esac`)
	script(t, "qsub", `echo "$@" > "`+dir+`/qsub.args"; echo 1236.torque.example.com`)
	script(t, "qdel", `echo "qdel: Unknown Job Id $1" >&2; exit 153`)

	config := fmt.Sprintf(`
version: 0
binaries:
  qnodes: %[1]s/qnodes
  qstat: %[1]s/qstat
  qsub: %[1]s/qsub
  qdel: %[1]s/qdel
timeout: 10s
log:
  verbose: true
watch:
  schedule: PT1H
  dir: %[1]s
`, dir)
	creat(t, "pbsctl.yaml", []byte(config))
}

func pbsctl(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), 60*time.Second)
	t.Cleanup(cancel)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pbsctlPath, append(args, "--config", "pbsctl.yaml")...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestSnapshot(t *testing.T) {
	fakeScheduler(t)

	stdout, stderr, err := pbsctl(t, "snapshot", "--output", "json")
	if err != nil {
		t.Logf("%s", stderr)
		require.NoError(t, err)
	}

	// store the $TEST_NAME json
	creat(t, t.Name()+".json", []byte(stdout))

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stdout), &snap))
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Queues, 2)
	require.Len(t, snap.Jobs, 2)
	require.Equal(t, "node01", snap.Nodes[0].Name)
	require.Equal(t, "batch", snap.Queues[0].Name)
	require.Equal(t, "1234.torque.example.com", snap.Jobs[0].ID)
	require.Equal(t, "en_US.UTF-8", snap.Jobs[0].Variables["PBS_O_LANG"])
}

func TestJobsText(t *testing.T) {
	fakeScheduler(t)

	stdout, stderr, err := pbsctl(t, "jobs")
	if err != nil {
		t.Logf("%s", stderr)
		require.NoError(t, err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "running")
	require.Contains(t, lines[1], "00:02:05")
	require.Contains(t, lines[2], "queued")
}

func TestSubmitAndDelete(t *testing.T) {
	fakeScheduler(t)

	stdout, stderr, err := pbsctl(t, "submit", "job.sh", "--range", "1-4", "-l", "walltime=01:00:00")
	if err != nil {
		t.Logf("%s", stderr)
		require.NoError(t, err)
	}
	require.Equal(t, "1236.torque.example.com\n", stdout)
	args, err := os.ReadFile("qsub.args")
	require.NoError(t, err)
	require.Equal(t, "-t 1-4 -l walltime=01:00:00 job.sh\n", string(args))

	_, stderr, err = pbsctl(t, "delete", "99.torque.example.com")
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.ExitCode())
	require.Contains(t, stderr, "Unknown Job Id 99.torque.example.com")
}

func TestWatchOnce(t *testing.T) {
	dir := tmpDirOf(t)

	_, stderr, err := pbsctl(t, "watch", "--once")
	if err != nil {
		t.Logf("%s", stderr)
		require.NoError(t, err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "pbs-snapshot-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestInvalidConfig(t *testing.T) {
	fakeScheduler(t)
	creat(t, "pbsctl.yaml", []byte("version: 0\nlog:\n  format: xml\n"))

	_, stderr, err := pbsctl(t, "nodes")
	require.Error(t, err)
	require.Contains(t, stderr, "invalid configuration")
	require.Contains(t, stderr, "log.format")
}

func tmpDirOf(t *testing.T) string {
	t.Helper()
	fakeScheduler(t)
	dir, err := os.Getwd()
	require.NoError(t, err)
	return dir
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}

func rmRfMkdirp(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func chDir(t *testing.T) string {
	t.Helper()
	tempdir := tmpDir(t)
	t.Chdir(tempdir)
	return tempdir
}

func creat(t *testing.T, path string, content []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	_, err = f.Write(content)
	require.NoError(t, err)
	err = f.Sync()
	require.NoError(t, err)
}

func script(t *testing.T, name, body string) {
	t.Helper()
	creat(t, name, []byte("#!/bin/sh\n"+body+"\n"))
	require.NoError(t, os.Chmod(name, 0o755))
}

func fixture(t *testing.T, inPath string) string {
	t.Helper()
	b, err := testingFS.ReadFile(inPath)
	require.NoError(t, err)
	path := filepath.Base(inPath)
	creat(t, path, b)
	return path
}
