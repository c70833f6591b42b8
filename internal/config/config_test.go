package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/config"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, string(domain.ModeAssisted), cfg.Mode)
	assert.Equal(t, 2, cfg.Engine.MaxRetries)
	assert.Equal(t, 0.9, cfg.Intent.AutoExecuteThreshold)
	assert.Equal(t, 3, cfg.Intent.MaxClarifyRounds)
	assert.Equal(t, ":8720", cfg.Server.Listen)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL.Std())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode: manual
engine:
  max_retries: 5
  step_delay: 250ms
intent:
  max_clarify_rounds: 2
redis:
  addr: localhost:6379
  ttl: 1h
server:
  listen: ":9000"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "manual", cfg.Mode)
	assert.Equal(t, 5, cfg.Engine.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.StepDelay.Std())
	assert.Equal(t, 2, cfg.Intent.MaxClarifyRounds)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.TTL.Std())
	assert.Equal(t, ":9000", cfg.Server.Listen)

	// Unset sections keep their defaults.
	assert.Equal(t, 0.9, cfg.Intent.AutoExecuteThreshold)
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, "mode: turbo\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
}

func TestLoad_RejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
intent:
  auto_execute_threshold: 0.5
  confirm_threshold: 0.7
  clarify_threshold: 0.4
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}

func TestLoad_RejectsBadEncryptionKey(t *testing.T) {
	path := writeConfig(t, `
security:
  encryption_key: tooshort
`)
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestEncryptionKeyBytes(t *testing.T) {
	cfg := config.Default()
	key, err := cfg.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Nil(t, key)

	cfg.Security.EncryptionKey = "0123456789abcdef0123456789abcdef"
	key, err = cfg.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)

	cfg.Security.EncryptionKey = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	key, err = cfg.EncryptionKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestCheckpointRules_DecodesLooseMaps(t *testing.T) {
	path := writeConfig(t, `
rules:
  - id: guard-datasets
    name: Confirm dataset deletions
    action: require_detailed_confirm
    trigger:
      action_types: [delete]
      resource_types: [dataset]
  - name: Confirm risky steps
    trigger:
      risks: [high]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	rules, err := cfg.CheckpointRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "guard-datasets", rules[0].ID)
	assert.Equal(t, domain.RuleRequireDetailedConfirm, rules[0].Action)
	assert.Equal(t, []domain.ActionType{domain.ActionDelete}, rules[0].Trigger.ActionTypes)
	assert.Equal(t, domain.RuleSourceUser, rules[0].Source)

	// Missing action defaults to require_confirm.
	assert.Equal(t, domain.RuleRequireConfirm, rules[1].Action)
	assert.Equal(t, []domain.RiskLevel{domain.RiskHigh}, rules[1].Trigger.Risks)
}

func TestCheckpointRules_RejectsUnknownAction(t *testing.T) {
	path := writeConfig(t, `
rules:
  - name: broken
    action: explode
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	_, err = cfg.CheckpointRules()
	assert.Error(t, err)
}
