package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/mcrt/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transparentConfig = "testdata/transparent.toml"

func TestVersionPrintsVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)

	stdout, _, err = executeCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "mcrt "+version.Version+" ("), stdout)
}

func TestRunRequiresConfigFlag(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag(s) \"config\" not set")
}

func TestValidateReportsGeometry(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "validate", "--config", transparentConfig)
	require.NoError(t, err)
	assert.Contains(t, stdout, `configuration "cli-smoke" is valid`)
	assert.Contains(t, stdout, "shells: 1")
	assert.Contains(t, stdout, "r_inner: 8.6400e+14 cm")
}

func TestValidateListsEveryProblem(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "validate", "--config", "testdata/invalid.toml")
	require.Error(t, err)
	assert.Contains(t, stdout, "configuration is invalid")
	assert.Contains(t, stdout, "supernova.luminosity_requested")
	assert.Contains(t, stdout, "model.velocity")
}

func TestRunJSONRecordsHistory(t *testing.T) {
	home := t.TempDir()

	stdout, _, err := executeCLI(t, home, "run", "--config", transparentConfig, "--json")
	require.NoError(t, err)
	require.True(t, json.Valid([]byte(stdout)))

	var out runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "cli-smoke", out.Name)
	assert.Equal(t, "converged", out.State)
	assert.Equal(t, 1, out.Iterations)
	require.Len(t, out.History, 2)
	assert.True(t, out.History[1].Final)
	assert.InEpsilon(t, 1e43, out.Luminosity, 1e-6)
	assert.Equal(t, filepath.Join(home, ".mcrt", "runs.toml"), out.File)
	assert.FileExists(t, out.File)

	stdout, _, err = executeCLI(t, home, "history", "--json")
	require.NoError(t, err)
	var latest runOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &latest))
	assert.Equal(t, out.ID, latest.ID)
	assert.Equal(t, "converged", latest.State)
	require.Len(t, latest.History, 2)
	assert.Equal(t, out.History[0].Iteration, latest.History[0].Iteration)
}

func TestRunRendersSummaryAndReplaysPackets(t *testing.T) {
	home := t.TempDir()
	runFile := filepath.Join(home, "runs", "smoke.toml")
	packetFile := filepath.Join(home, "packets.toml")

	stdout, _, err := executeCLI(t, home,
		"run",
		"--config", transparentConfig,
		"--out", runFile,
		"--save-packets", packetFile,
		"--seed", "7",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Run cli-smoke")
	assert.Contains(t, stdout, "state: converged")
	assert.FileExists(t, packetFile)
	assert.NoFileExists(t, filepath.Join(home, ".mcrt", "runs.toml"))

	_, _, err = executeCLI(t, home,
		"run",
		"--config", transparentConfig,
		"--out", runFile,
		"--packet-source", "file:"+packetFile,
		"--quiet",
	)
	require.NoError(t, err)

	stdout, _, err = executeCLI(t, home, "history", "--file", runFile, "--list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, line, "cli-smoke")
		assert.Contains(t, line, "converged")
	}
}

func TestRunRejectsUnknownPacketSource(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "run", "--config", transparentConfig, "--packet-source", "laser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown packet source "laser"`)
}

func TestHistoryWithoutRunsFails(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
}

func TestHistoryListWithoutRuns(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "history", "--list")
	require.NoError(t, err)
	assert.Equal(t, "no runs recorded\n", stdout)
}

func TestAtomsSummarisesBundledTable(t *testing.T) {
	stdout, _, err := executeCLI(t, t.TempDir(), "atoms")
	require.NoError(t, err)
	assert.Contains(t, stdout, "atom data: bundled")
	assert.Contains(t, stdout, "elements: 2  ions: 5  lines: 10")
	assert.Contains(t, stdout, "He II")
}

func TestAtomsRejectsMissingFile(t *testing.T) {
	_, _, err := executeCLI(t, t.TempDir(), "atoms", "--atom-data", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open atom data")
}

func executeCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("MCRT_RUNS_PATH", "")

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
