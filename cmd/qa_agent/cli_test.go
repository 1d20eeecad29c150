package main

import (
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func envWithout(prefixes ...string) []string {
	var env []string
	for _, e := range os.Environ() {
		keep := true
		for _, p := range prefixes {
			if strings.HasPrefix(e, p) {
				keep = false
			}
		}
		if keep {
			env = append(env, e)
		}
	}
	return env
}

func TestBinary_Help(t *testing.T) {
	binaryPath := getBinaryPath(t)

	output, err := exec.Command(binaryPath, "--help").CombinedOutput()

	assert.NoError(t, err)
	for _, sub := range []string{"serve", "start", "drive", "resume", "inspect", "history", "list", "fail", "recover", "token"} {
		assert.Contains(t, string(output), sub)
	}
}

func TestBinary_DriveMissingAPIKey(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "drive", "some-session", "--backend", "memory")
	cmd.Env = envWithout("GEMINI_API_KEY=")
	output, err := cmd.CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), "GEMINI_API_KEY environment variable or api_key config is required")
}

func TestBinary_ResumeMissingDecision(t *testing.T) {
	binaryPath := getBinaryPath(t)

	output, err := exec.Command(binaryPath, "resume", "some-session").CombinedOutput()

	assert.Error(t, err)
	assert.Contains(t, string(output), `required flag(s) "decision" not set`)
}
