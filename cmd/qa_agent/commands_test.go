package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/qa-orchestrator/internal/pipeline"
	"github.com/jonathan/qa-orchestrator/internal/state"
	"github.com/jonathan/qa-orchestrator/internal/types"
)

// resetFlags restores every flag to its default so commands can be executed
// repeatedly in one process.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command in-process and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolateEnv clears variables that would change the effective config.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "DATABASE_URL", "QA_CHECKPOINT_BACKEND",
		"QA_CHECKPOINT_DIR", "QA_TEAM_ID", "QA_MAX_ITERATIONS", "PORT",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("QA_LOG_LEVEL", "error")
}

func fileBackend(dir string) []string {
	return []string{"--backend", "file", "--checkpoint-dir", dir}
}

func startRun(t *testing.T, dir string) string {
	t.Helper()
	args := append([]string{"start", "--input", "Users can reset their password by email", "--team", "growth", "--json"}, fileBackend(dir)...)
	out, err := execute(t, args...)
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp["session_key"])
	return resp["session_key"]
}

func TestStartInspectListFail_FileBackend(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	key := startRun(t, dir)

	out, err := execute(t, append([]string{"inspect", key, "--json"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	var snap state.RunSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, key, snap.SessionKey)
	assert.Equal(t, "growth", snap.TeamID)
	assert.Equal(t, types.StatusRunning, snap.Status)
	assert.Equal(t, types.StageGenerateSpec, snap.Stage)

	out, err = execute(t, append([]string{"list", "--status", "running"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, key)

	out, err = execute(t, append([]string{"fail", key, "--reason", "abandoned", "--json"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, types.StatusFailed, snap.Status)
	assert.Contains(t, snap.ErrorMessage, "abandoned")

	out, err = execute(t, append([]string{"list", "--status", "RUNNING"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, key)
	assert.Contains(t, out, "No runs found.")
}

func TestStart_TextOutput(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()

	out, err := execute(t, append([]string{"start", "--input", "Export invoices as CSV"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Started run ")
}

func TestStart_InputFromFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "feature.txt")
	require.NoError(t, os.WriteFile(input, []byte("Search orders by customer name"), 0o644))

	_, err := execute(t, append([]string{"start", "--input-file", input}, fileBackend(dir)...)...)
	assert.NoError(t, err)
}

func TestStart_ClarificationsFile(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	questions := filepath.Join(dir, "questions.yaml")
	require.NoError(t, os.WriteFile(questions, []byte(
		"- Which browsers are supported?\n- question: Is SSO in scope?\n  answer: no SSO\n",
	), 0o644))

	out, err := execute(t, append([]string{"start", "--input", "Password reset", "--clarifications-file", questions, "--json"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	out, err = execute(t, append([]string{"inspect", resp["session_key"], "--json"}, fileBackend(dir)...)...)
	require.NoError(t, err)
	var snap state.RunSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, []types.Question{
		{ID: "q1", Text: "Which browsers are supported?"},
		{ID: "q2", Text: "Is SSO in scope?", Answer: "no SSO"},
	}, snap.Clarifications)
}

func TestStart_ClarificationsFileInvalid(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	questions := filepath.Join(dir, "questions.json")
	require.NoError(t, os.WriteFile(questions, []byte(`[{"answer": "orphan"}]`), 0o644))

	_, err := execute(t, append([]string{"start", "--input", "Password reset", "--clarifications-file", questions}, fileBackend(dir)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question has no text")

	_, err = execute(t, "start", "--backend", "memory", "--input", "x", "--clarifications-file", filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestStart_RequiresInput(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "start", "--backend", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature description is required")
}

func TestStart_InputFlagsExclusive(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "start", "--backend", "memory", "--input", "a", "--input-file", "b.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestStart_DriveRequiresAPIKey(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "start", "--backend", "memory", "--input", "feature", "--drive")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestDrive_RequiresAPIKey(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "drive", "some-session", "--backend", "memory")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestInspect_UnknownSession(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, append([]string{"inspect", "missing"}, fileBackend(t.TempDir())...)...)
	require.Error(t, err)
	var unknown *pipeline.UnknownSessionError
	assert.ErrorAs(t, err, &unknown)
}

func TestHistory_UnknownKind(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "history", "some-session", "readme", "--backend", "memory")
	assert.Error(t, err)
}

func TestList_UnknownStatus(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "list", "--status", "paused", "--backend", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown status")
}

func TestResume_EditRequiresContent(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "resume", "some-session", "--decision", "edit", "--backend", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decision")
}

func TestResume_RequiresDecisionFlag(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "resume", "some-session", "--backend", "memory")
	assert.Error(t, err)
}

func TestResume_NoDriveOnRunningRun(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	key := startRun(t, dir)

	_, err := execute(t, append([]string{"resume", key, "--decision", "APPROVE", "--no-drive"}, fileBackend(dir)...)...)
	require.Error(t, err)
	var notSuspended *pipeline.NotSuspendedError
	assert.ErrorAs(t, err, &notSuspended)
}

func TestLoadConfig_InvalidBackendFlag(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "list", "--backend", "etcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown checkpoint backend")
}

func TestLoadConfig_FileThenFlag(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "qa.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("checkpoint_backend: etcd\n"), 0o644))

	_, err := execute(t, "list", "--config", cfgPath)
	require.Error(t, err)

	_, err = execute(t, "list", "--config", cfgPath, "--backend", "memory")
	assert.NoError(t, err)
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "--subject", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestToken_Issues(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-test-secret-that-is-long-enough-for-hs256")

	out, err := execute(t, "token", "--subject", "alice")
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out)
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	progressPrinter(&buf)(pipeline.ProgressEvent{
		Stage:   types.StageEvaluateSpec,
		Message: "Evaluating spec v1",
	})
	assert.Equal(t, "→ [evaluate_spec] Evaluating spec v1\n", buf.String())
}

func TestReadContent(t *testing.T) {
	got, err := readContent("")
	require.NoError(t, err)
	assert.Empty(t, got)

	path := filepath.Join(t.TempDir(), "edited.feature")
	require.NoError(t, os.WriteFile(path, []byte("Feature: Login"), 0o644))
	got, err = readContent(path)
	require.NoError(t, err)
	assert.Equal(t, "Feature: Login", got)

	_, err = readContent(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
