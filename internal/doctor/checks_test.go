package doctor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
		})
	}
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
}

func (m *mockCheck) Name() string     { return m.name }
func (m *mockCheck) Category() string { return m.category }
func (m *mockCheck) Run() CheckResult { return m.result }

// fixableCheck also implements Fixer.
type fixableCheck struct {
	mockCheck
	fixErr   error
	fixCalls int
}

func (f *fixableCheck) Fix() error {
	f.fixCalls++
	return f.fixErr
}

func TestRunAll(t *testing.T) {
	checks := []Check{
		&mockCheck{name: "check1", result: CheckResult{Name: "check1", Status: StatusPass, Message: "OK"}},
		&mockCheck{name: "check2", result: CheckResult{Name: "check2", Status: StatusFail, Message: "Failed"}},
	}

	results := RunAll(checks)

	require.Len(t, results, 2)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusFail, results[1].Status)
}

func TestFixAll(t *testing.T) {
	broken := &fixableCheck{mockCheck: mockCheck{name: "perms"}}
	passing := &fixableCheck{mockCheck: mockCheck{name: "fine"}}
	plain := &mockCheck{name: "plain"}

	checks := []Check{broken, passing, plain}
	results := []CheckResult{
		{Name: "perms", Status: StatusWarn, Fixable: true},
		{Name: "fine", Status: StatusPass, Fixable: true},
		{Name: "plain", Status: StatusFail, Fixable: true},
	}

	fixed, err := FixAll(checks, results)
	require.NoError(t, err)
	assert.Equal(t, []string{"perms"}, fixed)
	assert.Equal(t, 1, broken.fixCalls)
	assert.Equal(t, 0, passing.fixCalls, "passing checks are left alone")
}

func TestFixAll_StopsOnError(t *testing.T) {
	broken := &fixableCheck{mockCheck: mockCheck{name: "perms"}, fixErr: errors.New("read-only")}

	_, err := FixAll([]Check{broken}, []CheckResult{{Status: StatusWarn, Fixable: true}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perms: read-only")
}

func TestCountByStatus(t *testing.T) {
	results := []CheckResult{
		{Status: StatusPass},
		{Status: StatusPass},
		{Status: StatusWarn},
		{Status: StatusFail},
	}

	counts := CountByStatus(results)
	assert.Equal(t, 2, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 1, counts[StatusFail])
}

func TestHasFailures(t *testing.T) {
	assert.False(t, HasFailures(nil))
	assert.False(t, HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusWarn}}))
	assert.True(t, HasFailures([]CheckResult{{Status: StatusPass}, {Status: StatusFail}}))
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}}, "Everything looks good"},
		{"one warning", []CheckResult{{Status: StatusWarn}}, "1 issue found"},
		{"mixed", []CheckResult{{Status: StatusWarn}, {Status: StatusFail}, {Status: StatusPass}}, "2 issues found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.results))
		})
	}
}
