package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pdaledger/internal/ir"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestAssertGolden_MatchesDigest(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/colors.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NoError(t, AssertGolden(t, scenario.Name, result))

	digest, err := ir.TraceDigest(snapshot(scenario.Name, result.Trace))
	require.NoError(t, err)
	assert.Equal(t, digest, result.Digest)
}

func TestSnapshot_Shape(t *testing.T) {
	trace := []TraceEvent{
		{Step: 1, Op: OpSet, Owner: "O1", Signer: "O2", Category: "red", Balance: u64(9), Outcome: "UNAUTHORIZED"},
		{Step: 2, Op: OpRead, Owner: "O1", Category: "red", Outcome: OutcomeOK, Record: &RecordView{Category: "red", Balance: 1}},
	}

	data, err := ir.MarshalCanonical(snapshot("shape", trace))
	require.NoError(t, err)

	want := `{"scenario":"shape","trace":[` +
		`{"balance":9,"category":"red","op":"set","outcome":"UNAUTHORIZED","owner":"O1","signer":"O2","step":1},` +
		`{"category":"red","op":"read","outcome":"ok","owner":"O1","record":{"balance":1,"category":"red"},"step":2}]}`
	assert.Equal(t, want, string(data))
}
