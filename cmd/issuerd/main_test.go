package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrEthical07/goIssuer/password"
)

func generatedEnv(t *testing.T) map[string]string {
	t.Helper()
	var out bytes.Buffer
	cmd := newKeygenCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	environ := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		k, v, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		environ[k] = v
	}
	require.Contains(t, environ, "ISSUER_SIGNING_KEY")
	require.Contains(t, environ, "ISSUER_KEY_ID")
	return environ
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"password", "code"}, cfg.Providers)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 587, cfg.SMTP.Port)

	_, err = cfg.issuerConfig()
	assert.ErrorContains(t, err, "ISSUER_SIGNING_KEY")
}

func TestLoadConfigOverrides(t *testing.T) {
	environ := generatedEnv(t)
	environ["ISSUER_PROVIDERS"] = "code"
	environ["ISSUER_ACCESS_TTL"] = "5m"
	environ["ISSUER_SMTP_HOST"] = "smtp.example.com"
	environ["ISSUER_CODE_DIGITS"] = "8"

	cfg, err := loadConfig("", environ)
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, cfg.Providers)
	assert.Equal(t, "smtp.example.com", cfg.smtpSender().Host)

	icfg, err := cfg.issuerConfig()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, icfg.JWT.AccessTTL)
	assert.Equal(t, 8, icfg.EmailCode.Digits)
	assert.Equal(t, environ["ISSUER_KEY_ID"], icfg.JWT.KeyID)
}

func TestSigningKeyRejectsBadInput(t *testing.T) {
	for _, key := range []string{"not base64!", "c2hvcnQ="} {
		_, err := daemonConfig{SigningKey: key}.signingKey()
		assert.Error(t, err, key)
	}
}

func TestBuildIssuerWithRedisAndSQLite(t *testing.T) {
	mr := miniredis.RunT(t)
	environ := generatedEnv(t)
	environ["ISSUER_REDIS_URL"] = "redis://" + mr.Addr()
	environ["ISSUER_SQLITE_PATH"] = ":memory:"
	environ["ISSUER_AUDIT_LOG"] = "true"

	cfg, err := loadConfig("", environ)
	require.NoError(t, err)

	iss, cleanup, err := buildIssuer(context.Background(), cfg, zap.NewNop())
	defer cleanup.run()
	require.NoError(t, err)

	report := iss.SecurityReport()
	assert.True(t, report.RateLimitingActive)
	assert.True(t, report.AuditEnabled)
	assert.Equal(t, []string{"code", "password"}, report.Providers)
}

func TestBuildIssuerUnknownProvider(t *testing.T) {
	environ := generatedEnv(t)
	environ["ISSUER_PROVIDERS"] = "password,github"
	cfg, err := loadConfig("", environ)
	require.NoError(t, err)

	_, cleanup, err := buildIssuer(context.Background(), cfg, zap.NewNop())
	defer cleanup.run()
	assert.ErrorContains(t, err, "github")
}

func TestLintConfigLogsAndBlocksProduction(t *testing.T) {
	environ := generatedEnv(t)
	environ["ISSUER_REVEAL_UNKNOWN_IDENTITY"] = "true"
	cfg, err := loadConfig("", environ)
	require.NoError(t, err)
	icfg, err := cfg.issuerConfig()
	require.NoError(t, err)

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, lintConfig(icfg, zap.New(core)))
	warned := logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("code", "identity_reveal"))
	assert.Equal(t, 1, warned.Len())

	environ["ISSUER_PRODUCTION"] = "true"
	environ["ISSUER_URL"] = "https://auth.example.com"
	cfg, err = loadConfig("", environ)
	require.NoError(t, err)
	_, cleanup, err := buildIssuer(context.Background(), cfg, zap.NewNop())
	defer cleanup.run()
	assert.ErrorContains(t, err, "identity_reveal")
}

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	cmd := newHashPasswordCmd()
	cmd.SetIn(strings.NewReader("correct-horse-battery\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--algorithm", "scrypt"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "scrypt", password.Algorithm(strings.TrimSpace(out.String())))

	cmd = newHashPasswordCmd()
	cmd.SetIn(strings.NewReader("short\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())
}
