package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/results"
)

func sampleReport() *results.Report {
	f := schemas.Finding{
		Kind: schemas.FindingKind{Name: "FloatComparison", Category: "Correctness", BaseRank: 40},
		Rank: 15,
		Annotations: schemas.AnnotationSet{
			schemas.ForType("com/example/Counter"),
			schemas.ForSourceFile("Counter.java"),
			schemas.ForMethod(schemas.MemberRef{Owner: "com/example/Counter", Name: "ratioEquals", Descriptor: "(F)Z"}),
			schemas.ForLocation(schemas.Location{Offset: 4, Line: 30}),
		},
	}
	fs := []schemas.Finding{f}
	return results.NewReport(results.Summarize(uuid.New(), fs, nil), fs, nil)
}

// -- Factory --

func TestNew_LoggerRequirement(t *testing.T) {
	reporter, err := New(FormatSARIF, "stdout", &bytes.Buffer{}, nil, Options{})
	assert.Nil(t, reporter)
	assert.ErrorContains(t, err, "logger cannot be nil")
}

func TestNew_UnsupportedFormat(t *testing.T) {
	reporter, err := New("xml", "", &bytes.Buffer{}, zaptest.NewLogger(t), Options{})
	assert.Nil(t, reporter)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNew_Stdout(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatText, "[Correctness] FloatComparison rank=15"},
		{FormatJSON, `"highest_rank": 15`},
		{FormatSARIF, `"version": "2.1.0"`},
	}
	for _, tt := range tests {
		for _, outputPath := range []string{"", "stdout"} {
			t.Run(tt.format+"/"+outputPath, func(t *testing.T) {
				var buf bytes.Buffer
				reporter, err := New(tt.format, outputPath, &buf, zaptest.NewLogger(t), Options{ToolVersion: "test"})
				require.NoError(t, err)

				require.NoError(t, reporter.Write(sampleReport()))
				require.NoError(t, reporter.Close())
				assert.Contains(t, buf.String(), tt.want)
			})
		}
	}
}

func TestNew_File(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "report.sarif")
	var stdout bytes.Buffer

	reporter, err := New(FormatSARIF, outputPath, &stdout, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)
	sarifReporter, ok := reporter.(*SARIFReporter)
	require.True(t, ok)
	_, ok = sarifReporter.writer.(*os.File)
	assert.True(t, ok, "Writer should be an *os.File when targeting a file path")

	require.NoError(t, reporter.Write(sampleReport()))
	require.NoError(t, reporter.Close())

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ruleId": "FloatComparison"`)
	assert.Empty(t, stdout.String())
}

func TestNew_FileCreationError(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "missing", "report.json")
	_, err := New(FormatJSON, outputPath, &bytes.Buffer{}, zaptest.NewLogger(t), Options{})
	assert.ErrorContains(t, err, "failed to create output file")
}
