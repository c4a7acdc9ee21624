package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	var cfg Config
	cfg.App.Port = 38573
	cfg.App.DataDir = ""
	cfg.Ingest.SourceDir = "raw_data"
	cfg.Ingest.ProcessedDir = "processed_data"
	cfg.Ingest.PollSeconds = 30
	cfg.Ingest.Workers = 4
	cfg.Ingest.FilesPerSecond = 4
	cfg.Ingest.MaxFilesPerScan = 50
	return cfg
}

func TestNormalizeAndValidate_OK(t *testing.T) {
	_, vr := NormalizeAndValidate(validConfig())
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Empty(t, vr.Warnings)
}

func TestNormalizeAndValidate_TrimsAndDedupesLists(t *testing.T) {
	cfg := validConfig()
	cfg.Extract.RoleKeywords = []string{" Dispatcher ", "dispatcher", "", "buyer"}
	cfg.Extract.LocationHints = []string{"Winnipeg", "winnipeg "}

	out, vr := NormalizeAndValidate(cfg)
	require.True(t, vr.OK())
	assert.Equal(t, []string{"Dispatcher", "buyer"}, out.Extract.RoleKeywords)
	assert.Equal(t, []string{"Winnipeg"}, out.Extract.LocationHints)
}

func TestNormalizeAndValidate_Errors(t *testing.T) {
	cfg := validConfig()
	cfg.App.Port = 0
	cfg.Ingest.Workers = 0
	cfg.Ingest.ProcessedDir = cfg.Ingest.SourceDir

	_, vr := NormalizeAndValidate(cfg)
	require.False(t, vr.OK())
	assert.Contains(t, vr.Errors, "app.port must be 1..65535")
	assert.Contains(t, vr.Errors, "ingest.workers must be > 0")
	assert.Contains(t, vr.Errors, "ingest.source_dir and ingest.processed_dir must differ")
}

func TestNormalizeAndValidate_MailboxRequirements(t *testing.T) {
	cfg := validConfig()
	cfg.Mailbox.Enabled = true

	_, vr := NormalizeAndValidate(cfg)
	require.False(t, vr.OK())
	assert.Contains(t, vr.Errors, "mailbox.imap_host is required when mailbox.enabled=true")
	assert.Contains(t, vr.Errors, "mailbox.username is required when mailbox.enabled=true")

	cfg.Mailbox.IMAPHost = "imap.example.com"
	cfg.Mailbox.IMAPPort = 993
	cfg.Mailbox.Username = "bot@example.com"
	cfg.Mailbox.Mailbox = "INBOX"

	_, vr = NormalizeAndValidate(cfg)
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.NotEmpty(t, vr.Warnings, "empty subject filter warns")
}

func TestNormalizeAndValidate_LowPollWarns(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.PollSeconds = 2

	_, vr := NormalizeAndValidate(cfg)
	assert.True(t, vr.OK())
	assert.NotEmpty(t, vr.Warnings)
}

func TestSaveAtomic_RoundTripAndBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	cfg := validConfig()

	require.NoError(t, SaveAtomic(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// second save keeps a .bak of the previous file
	cfg.Ingest.PollSeconds = 60
	require.NoError(t, SaveAtomic(path, cfg))

	_, err = os.Stat(path + ".bak")
	assert.NoError(t, err)

	loaded, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.Ingest.PollSeconds)
}

func TestSaveAtomic_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg := validConfig()
	cfg.App.Port = -1

	err := SaveAtomic(filepath.Join(dir, "config.yml"), cfg)
	assert.Error(t, err)
}

func TestEnsureUserConfig_CopiesDefaultOnce(t *testing.T) {
	dataDir := t.TempDir()
	defaultPath := filepath.Join(t.TempDir(), "default.yml")
	require.NoError(t, os.WriteFile(defaultPath, []byte("app:\n  port: 38573\n"), 0o644))

	path, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config.yml"), path)

	// existing user config is never overwritten
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 1234\n"), 0o644))
	again, err := EnsureUserConfig(dataDir, defaultPath)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.App.Port)
}
