package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_Scenarios(t *testing.T) {
	for _, name := range []string{"registration_disabled", "handshake_retroactive"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestWriteSnapshot_MatchesGolden(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "registration_disabled.yaml"))
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "registration_disabled.golden")
	require.NoError(t, writeSnapshot(out, scenario.Name, result))

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join("testdata", "golden", "registration_disabled.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden), string(written))
}

func TestSnapshot_MarshalDeterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "handshake_retroactive.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := snapshotOf(scenario.Name, first).Marshal()
	require.NoError(t, err)
	b, err := snapshotOf(scenario.Name, second).Marshal()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, byte('\n'), a[len(a)-1])
}
