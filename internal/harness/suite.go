package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path         string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q does not exist (resolved to: %s)", e.Path, e.ResolvedPath)
}

// FindScenarios resolves path to scenario files. A file is returned as is;
// a directory yields its *.yaml and *.yml files in name order.
func FindScenarios(path string) ([]string, error) {
	resolved, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path, ResolvedPath: resolved}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{resolved}, nil
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(resolved, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult is the result of one scenario file in a suite run.
type SuiteResult struct {
	Path   string  `json:"path"`
	Name   string  `json:"name"`
	Result *Result `json:"result,omitempty"`
	Err    string  `json:"error,omitempty"`
}

// Passed reports whether the scenario loaded, ran and held.
func (r SuiteResult) Passed() bool {
	return r.Err == "" && r.Result != nil && r.Result.Pass
}

// RunSuite loads and runs every scenario under path. A scenario that fails
// to load or run is recorded and the suite moves on.
func RunSuite(ctx context.Context, path string, opts ...Option) ([]SuiteResult, error) {
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	results := make([]SuiteResult, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sr := SuiteResult{Path: file}
		scenario, err := LoadScenario(file)
		if err != nil {
			sr.Err = err.Error()
			results = append(results, sr)
			continue
		}
		sr.Name = scenario.Name
		result, err := Run(ctx, scenario, opts...)
		if err != nil {
			sr.Err = err.Error()
		}
		sr.Result = result
		results = append(results, sr)
	}
	return results, nil
}
