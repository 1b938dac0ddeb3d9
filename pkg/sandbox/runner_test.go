package sandbox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	results := []TestResult{
		{Description: "adds two numbers", Passed: true},
		{Description: "handles zero", Expected: "0", Actual: "1"},
		{Error: "execution timed out", TimedOut: true},
	}

	summary := Summarize(results)

	require.Contains(t, summary, "Passed 1 of 3 test case(s).")
	require.Contains(t, summary, "PASS adds two numbers")
	require.Contains(t, summary, `FAIL handles zero: expected "0", got "1"`)
	require.Contains(t, summary, "ERROR case 3: execution timed out")
}

func TestSummarizeEmpty(t *testing.T) {
	require.Empty(t, Summarize(nil))
}

func TestUnsupportedLanguage(t *testing.T) {
	_, ok := languages["rust"]
	require.False(t, ok)

	_, ok = languages["python"]
	require.True(t, ok)
}
