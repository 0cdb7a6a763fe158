// Package doctor runs preflight checks for a deployment: the config, the
// key file, the local tools the transport needs, and the host itself.
package doctor

import (
	"fmt"

	"github.com/sgflota/sgdeploy/internal/util"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string
	Status     CheckStatus
	Message    string
	Suggestion string
	Fixable    bool // Whether --fix can address this
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (e.g., "CONFIG", "LOCAL", "REMOTE").
	Category() string

	// Run executes the check and returns the result.
	Run() CheckResult
}

// Fixer is implemented by checks that can repair what they report.
type Fixer interface {
	Fix() error
}

// RunAll executes all checks in order and returns the results.
func RunAll(checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	for i, check := range checks {
		results[i] = check.Run()
	}
	return results
}

// FixAll runs Fix on every fixable check whose result is not a pass.
// It returns the names of the checks that were fixed.
func FixAll(checks []Check, results []CheckResult) ([]string, error) {
	var fixed []string
	for i, check := range checks {
		r := results[i]
		if !r.Fixable || r.Status == StatusPass {
			continue
		}
		fixer, ok := check.(Fixer)
		if !ok {
			continue
		}
		if err := fixer.Fix(); err != nil {
			return fixed, fmt.Errorf("%s: %w", check.Name(), err)
		}
		fixed = append(fixed, check.Name())
	}
	return fixed, nil
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	total := counts[StatusWarn] + counts[StatusFail]

	if total == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", total, util.Pluralize(total, "issue", "issues"))
}
