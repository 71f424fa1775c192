package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/infinity/internal/store"
)

// ViewSnapshot captures a scenario's batch outcomes and the final view.
// It is serialized as canonical JSON for deterministic comparison.
type ViewSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Batches      []BatchResult   `json:"batches"`
	View         *store.Snapshot `json:"view"`
}

// RunWithGolden executes a scenario, fails the test if any assertion failed,
// and compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%v", scenario.Name, result.Errors)
	}

	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalCanonical(ViewSnapshot{
		ScenarioName: scenarioName,
		Batches:      result.Batches,
		View:         result.Snapshot,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
