package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	configPath := filepath.Join(home, "smoke.toml")
	require.NoError(t, writeConfigFixture(configPath))

	stdout, stderr, err := runMCRT(t, binaryPath, home, "validate", "--config", configPath)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, `configuration "smoke" is valid`)

	_, stderr, err = runMCRT(t, binaryPath, home, "run", "--config", configPath, "--quiet")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runMCRT(t, binaryPath, home, "history")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Run smoke")
	assert.Contains(t, stdout, "state: converged")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "mcrt-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/mcrt")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build mcrt binary: %s", string(output))
	return binaryPath
}

func runMCRT(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "MCRT_RUNS_PATH=", "MCRT_LOG_NOCOLOR=true")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(path string) error {
	config := `name = "smoke"

[supernova]
time_explosion = "10 day"
luminosity_requested = "1e43 erg/s"

[model.velocity]
start = "10000 km/s"
stop = "20000 km/s"
num = 2

[model.density]
type = "uniform"
value = 0

[model.abundances.uniform]
H = 1

[packets]
count = 200
last_count = 400

[convergence]
hold_iterations = 1

[spectrum]
start = "20000 angstrom"
stop = "1000 angstrom"
bins = 100
`

	return os.WriteFile(path, []byte(config), 0o644)
}
