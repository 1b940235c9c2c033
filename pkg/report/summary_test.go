package report_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/skan/pkg/report"
)

func TestSummaryFileName(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "CHECKOV_SUMMARY_20240315-103000.md", report.SummaryFileName(at))
}

func TestWriteSummary(t *testing.T) {
	t.Parallel()

	reports, err := report.Load([]byte(kubernetesReport))
	require.NoError(t, err)

	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	b := &strings.Builder{}
	require.NoError(t, report.WriteSummary(b, reports, at))

	want := "# Checkov Scan Summary\n" +
		"\n" +
		"## Scan Metadata\n" +
		"- **Timestamp:** 2024-03-15 10:30:00\n" +
		"- **Passed Checks:** 1\n" +
		"- **Failed Checks:** 2\n" +
		"- **Skipped Checks:** 0\n" +
		"- **Parsing Errors:** 0\n" +
		"- **Resources Scanned:** 1\n" +
		"- **Checkov Version:** 3.2.255\n" +
		"\n" +
		"## Failed Checks Detail\n" +
		"\n" +
		"### CKV_K8S_21 - The default namespace should not be used\n" +
		"- **File:** `/deployment.yaml`\n" +
		"- **Resource:** `Deployment.default.nginx`\n" +
		"- **Severity:** N/A\n" +
		"- **Guideline:** [https://docs.example.com/policies/bc-k8s-20](https://docs.example.com/policies/bc-k8s-20)\n" +
		"\n" +
		"### CKV_K8S_43 - Image should use digest\n" +
		"- **File:** `/deployment.yaml`\n" +
		"- **Resource:** `Deployment.default.nginx`\n" +
		"- **Severity:** HIGH\n" +
		"\n"

	assert.Equal(t, want, b.String())
}

func TestWriteSummary_NoFailedChecks(t *testing.T) {
	t.Parallel()

	reports := []report.Report{
		{
			CheckType: "kubernetes",
			Summary:   report.Summary{Passed: 4, CheckovVersion: "3.2.255", ResourceCount: 2},
		},
	}

	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	b := &strings.Builder{}
	require.NoError(t, report.WriteSummary(b, reports, at))

	got := b.String()
	assert.Contains(t, got, "- **Passed Checks:** 4\n")
	assert.NotContains(t, got, "## Failed Checks Detail")
}

func TestWriteSummary_CheckDefaults(t *testing.T) {
	t.Parallel()

	reports := []report.Report{
		{
			Results: report.Results{
				FailedChecks: []report.Check{{}},
			},
		},
	}

	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	b := &strings.Builder{}
	require.NoError(t, report.WriteSummary(b, reports, at))

	got := b.String()
	assert.Contains(t, got, "### UNKNOWN - Unnamed Check\n")
	assert.Contains(t, got, "- **File:** `unknown`\n")
	assert.Contains(t, got, "- **Resource:** `unknown`\n")
	assert.Contains(t, got, "- **Severity:** N/A\n")
	assert.NotContains(t, got, "**Guideline:**")
	assert.Contains(t, got, "- **Checkov Version:** N/A\n")
}
