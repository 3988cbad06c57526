package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/neuraldsl/internal/engine"
)

// ScenarioNotFoundError is returned when a scenario directory doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Path)
}

// SuiteOptions controls RunSuite.
type SuiteOptions struct {
	// Filter is a glob matched against scenario file names without
	// extension. Empty runs everything.
	Filter string

	// Update rewrites golden files instead of comparing against them.
	Update bool

	// Engine options passed to every Run.
	Engine []engine.EngineOption
}

// ScenarioOutcome is the result of one scenario file in a suite.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "" when absent
	Errors []string `json:"errors,omitempty"`
}

// SuiteResult summarizes a suite run.
type SuiteResult struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
}

// FindScenarios returns the .yaml and .yml files under dir in lexical
// order, keeping those whose base name matches filter.
func FindScenarios(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: dir}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// GoldenPath returns the golden file for a scenario file: a golden
// directory next to it holding <name>.golden.
func GoldenPath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// RunSuite loads and runs every scenario under dir. A scenario passes when
// its assertions hold and, if a golden file exists, its snapshot matches.
func RunSuite(dir string, opts SuiteOptions) (*SuiteResult, error) {
	files, err := FindScenarios(dir, opts.Filter)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{
		Scenarios: make([]ScenarioOutcome, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		so := runScenarioFile(file, opts)
		if so.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, so)
	}
	return result, nil
}

func runScenarioFile(file string, opts SuiteOptions) ScenarioOutcome {
	so := ScenarioOutcome{Name: filepath.Base(file), Path: file}

	scenario, err := LoadScenario(file)
	if err != nil {
		so.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return so
	}
	so.Name = scenario.Name

	res, err := Run(scenario, opts.Engine...)
	if err != nil {
		so.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return so
	}
	so.Errors = res.Errors

	snap, err := Snapshot(scenario.Name, res)
	if err != nil {
		so.Errors = append(so.Errors, fmt.Sprintf("snapshot failed: %v", err))
		return so
	}

	goldenPath := GoldenPath(file)
	switch {
	case opts.Update:
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			so.Errors = append(so.Errors, fmt.Sprintf("failed to create golden directory: %v", err))
			return so
		}
		if err := os.WriteFile(goldenPath, snap, 0o644); err != nil {
			so.Errors = append(so.Errors, fmt.Sprintf("failed to write golden file: %v", err))
			return so
		}
		so.Golden = "updated"
	default:
		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			so.Errors = append(so.Errors, fmt.Sprintf("failed to read golden file: %v", err))
			return so
		}
		if !bytes.Equal(bytes.TrimSpace(want), snap) {
			so.Errors = append(so.Errors, "snapshot does not match golden file (run with --update to regenerate)")
			return so
		}
		so.Golden = "match"
	}

	so.Pass = len(so.Errors) == 0
	return so
}
