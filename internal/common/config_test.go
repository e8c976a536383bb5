package common

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"BAIDU_APP_ID", "BAIDU_API_KEY", "BAIDU_SECRET_KEY", "BAIDU_BASE_URL", "OCR_QPS",
	"OCR_TIMEOUT", "RENDER_DPI", "PDFTOPPM", "REPORT_NAME", "LEDGER_DSN", "HEALTH_ADDR",
	"LOG_LEVEL", "LOG_FILE",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "https://aip.baidubce.com", cfg.OCR.BaseURL)
	assert.Equal(t, 300, cfg.Render.DPI)
	assert.Equal(t, 95, cfg.Render.JPEGQuality)
	assert.Equal(t, 4096, cfg.Render.MaxEdge)
	assert.Equal(t, DefaultReportName, cfg.Report.Name)
	assert.Equal(t, 30*time.Second, time.Duration(cfg.OCR.Timeout))
	assert.Equal(t, ":8090", cfg.Server.HealthAddr)
	assert.True(t, cfg.LedgerEnabled())
}

func TestLoadConfig_Layering(t *testing.T) {
	clearEnv(t)
	tomlPath := writeTemp(t, "config.toml", `
[ocr]
api_key = "toml-key"
secret_key = "toml-secret"
timeout = "5s"
qps = 10.0

[render]
dpi = 200
gray = true

[report]
name = "out.xlsx"
`)
	envPath := writeTemp(t, ".env", "BAIDU_SECRET_KEY=dotenv-secret\nRENDER_DPI=150\n")
	t.Setenv("RENDER_DPI", "600")

	cfg, err := LoadConfig(LoadOptions{ConfigFile: tomlPath, EnvFile: envPath})
	require.NoError(t, err)

	assert.Equal(t, "toml-key", cfg.OCR.APIKey)
	assert.Equal(t, "dotenv-secret", cfg.OCR.SecretKey)
	assert.Equal(t, 600, cfg.Render.DPI, "process env wins over .env")
	assert.True(t, cfg.Render.Gray)
	assert.Equal(t, 5*time.Second, time.Duration(cfg.OCR.Timeout))
	assert.InDelta(t, 10.0, cfg.OCR.QPS, 1e-9)
	assert.Equal(t, "out.xlsx", cfg.Report.Name)
	assert.Equal(t, 95, cfg.Render.JPEGQuality, "untouched defaults survive")
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_BadFiles(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.toml")})
	assert.Error(t, err)

	_, err = LoadConfig(LoadOptions{ConfigFile: writeTemp(t, "bad.toml", "[ocr\n")})
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "CONFIG_ERROR", appErr.Code)

	_, err = LoadConfig(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
	assert.Error(t, err, "an explicitly named env file must exist")
}

func TestParseCredentials(t *testing.T) {
	cases := []struct {
		in      string
		want    [3]string
		wantErr bool
	}{
		{in: "123,ak,sk", want: [3]string{"123", "ak", "sk"}},
		{in: " 123 , ak , sk ", want: [3]string{"123", "ak", "sk"}},
		{in: "123,ak", wantErr: true},
		{in: "1,2,3,4", wantErr: true},
		{in: "123,,sk", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			a, k, s, err := ParseCredentials(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, [3]string{a, k, s})
		})
	}
}

func TestConfig_ApplyCredentialsAndValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "BAIDU_API_KEY")

	require.NoError(t, cfg.ApplyCredentials("app,key,secret"))
	assert.Equal(t, "app", cfg.OCR.AppID)
	require.NoError(t, cfg.Validate())

	cfg.Render.JPEGQuality = 0
	assert.ErrorContains(t, cfg.Validate(), "jpeg_quality")
}

func TestConfig_Helpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	cfg.Log.Level = "loud"
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())

	cfg.Ledger.DSN = "OFF"
	assert.False(t, cfg.LedgerEnabled())
}
