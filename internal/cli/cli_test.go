package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `station_id,datetime,water_level,lat,lon
S1,2024-03-01 08:00:00,5.0,13.08,80.27
S1,2024-03-01 09:00:00,1.5,13.08,80.27
S2,2024-03-01 08:00:00,6.0,12.97,77.59
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "dwlr_data.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	data := fmt.Sprintf(`
data:
  source: csv
  csv_path: %s
storage:
  path: %s
dispatch:
  mode: sync
logging:
  level: error
`, csvPath, filepath.Join(dir, "dwlr.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(data), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dwlr version dev\n", out)
}

func TestStations(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := execute(t, "--config", cfgPath, "stations")
	require.NoError(t, err)

	assert.Contains(t, out, "STATION")
	assert.Regexp(t, `S1\s+1\.50\s+2024-03-01 09:00\s+LOW`, out)
	assert.Regexp(t, `S2\s+6\.00\s+2024-03-01 08:00\s+NORMAL`, out)
}

func TestStats(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := execute(t, "--config", cfgPath, "stats")
	require.NoError(t, err)
	assert.Regexp(t, `S1\s+2\s+1\.50\s+5\.00\s+3\.25`, out)
}

func TestCheck_RecordsHistory(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := execute(t, "--config", cfgPath, "check", "S1", "S2")
	require.NoError(t, err)
	assert.Contains(t, out, "⚠️ ALERT: Water level critically LOW (1.50 m) at station S1")
	assert.Contains(t, out, "✅ Water level is Normal (6.00 m) at station S2")

	out, err = execute(t, "--config", cfgPath, "history", "--station", "S1")
	require.NoError(t, err)
	assert.Regexp(t, `S1\s+LOW\s+1\.50`, out)
}

func TestCheck_UnknownStation(t *testing.T) {
	cfgPath := writeTestConfig(t)
	_, err := execute(t, "--config", cfgPath, "check", "S9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S9")
}

func TestHistory_Empty(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := execute(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No alerts recorded.")
}

func TestExport_Stdout(t *testing.T) {
	cfgPath := writeTestConfig(t)
	t.Cleanup(func() { _ = exportCmd.Flags().Set("output", "") })

	out, err := execute(t, "--config", cfgPath, "export", "S2", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, "station_id,datetime,water_level,lat,lon\nS2,2024-03-01T08:00:00Z,6,12.97,77.59\n", out)
}

func TestImport(t *testing.T) {
	cfgPath := writeTestConfig(t)
	csvPath := filepath.Join(filepath.Dir(cfgPath), "dwlr_data.csv")

	out, err := execute(t, "--config", cfgPath, "import", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 readings for 2 stations")
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	cfgPath := writeTestConfig(t)
	t.Setenv("DWLR_ALERTS_SMS_API_KEY", "super-secret")

	out, err := execute(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "low_threshold: 2")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "super-secret")
}
