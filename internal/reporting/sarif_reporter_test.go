// internal/reporting/sarif_reporter_test.go
package reporting_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/reporting"
	"github.com/xkilldash9x/bugscan/internal/reporting/sarif"
	"github.com/xkilldash9x/bugscan/internal/results"
)

// MockWriteCloser allows capturing output and simulating I/O errors.
type MockWriteCloser struct {
	Buffer    *bytes.Buffer
	FailWrite bool
	FailClose bool
}

func (m *MockWriteCloser) Write(p []byte) (n int, err error) {
	if m.FailWrite {
		return 0, errors.New("simulated write error")
	}
	return m.Buffer.Write(p)
}

func (m *MockWriteCloser) Close() error {
	if m.FailClose {
		return errors.New("simulated close error")
	}
	return nil
}

var (
	kindVolatile = schemas.FindingKind{Name: "VolatileIncrement", Category: "Multithreading", BaseRank: 75}
	kindMath     = schemas.FindingKind{Name: "VolatileMath", Category: "Multithreading", BaseRank: 75}
	kindCase     = schemas.FindingKind{Name: "ConvertCaseWithDefaultLocale", Category: "Internationalization", BaseRank: 25}
	kindUnknown  = schemas.FindingKind{Name: "Undeclared", Category: "Misc", BaseRank: 10}

	incrementMethod = schemas.MemberRef{Owner: "com/example/Counter", Name: "increment", Descriptor: "()V"}
)

func setupSARIFTest(t *testing.T) (*reporting.SARIFReporter, *MockWriteCloser) {
	mockWriter := &MockWriteCloser{Buffer: new(bytes.Buffer)}
	reporter := reporting.NewSARIFReporter(mockWriter, zaptest.NewLogger(t), reporting.Options{
		ToolVersion: "v1.2.3-test",
		Kinds:       []schemas.FindingKind{kindVolatile, kindMath, kindCase},
	})
	return reporter, mockWriter
}

func decodeLog(t *testing.T, raw []byte) *sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, jsoniter.Unmarshal(raw, &log))
	require.Len(t, log.Runs, 1)
	return &log
}

func volatileFinding(rank int, extra ...schemas.Annotation) schemas.Finding {
	annotations := schemas.AnnotationSet{
		schemas.ForType("com/example/Counter"),
		schemas.ForSourceFile("Counter.java"),
		schemas.ForMethod(incrementMethod),
		schemas.ForField(schemas.MemberRef{Owner: "com/example/Counter", Name: "count", Descriptor: "I"}),
		schemas.ForLocation(schemas.Location{Offset: 4, Line: 12}),
	}
	annotations = append(annotations, extra...)
	return schemas.Finding{Kind: kindVolatile, Rank: rank, Annotations: annotations}
}

func TestSARIFReporter_Initialization(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	require.NoError(t, reporter.Close())

	log := decodeLog(t, writer.Buffer.Bytes())
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	assert.Equal(t, reporting.SARIFSchema, log.Schema)

	driver := log.Runs[0].Tool.Driver
	assert.Equal(t, reporting.ToolName, driver.Name)
	require.NotNil(t, driver.Version)
	assert.Equal(t, "v1.2.3-test", *driver.Version)

	ids := make([]string, len(driver.Rules))
	for i, rule := range driver.Rules {
		ids[i] = rule.ID
	}
	assert.Equal(t, []string{"VolatileIncrement", "VolatileMath", "ConvertCaseWithDefaultLocale"}, ids)
	assert.Empty(t, log.Runs[0].Results)
	assert.Contains(t, writer.Buffer.String(), `"results": []`)
}

func TestSARIFReporter_Results(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	secondary := schemas.ForAnotherInstance(schemas.Location{Offset: 9, Line: schemas.UnknownLine})
	caseFinding := schemas.Finding{
		Kind: kindCase,
		Rank: 25,
		Annotations: schemas.AnnotationSet{
			schemas.ForType("Shout"),
			schemas.ForMethod(schemas.MemberRef{Owner: "Shout", Name: "run", Descriptor: "()V"}),
			schemas.ForReplacement(schemas.MemberRef{Owner: "java/lang/String", Name: "toUpperCase", Descriptor: "(Ljava/util/Locale;)Ljava/lang/String;"}),
			schemas.ForLocation(schemas.Location{Offset: 2, Line: schemas.UnknownLine}),
		},
	}
	fs := []schemas.Finding{volatileFinding(85, secondary), caseFinding}
	report := results.NewReport(results.Summarize(uuid.New(), fs, nil), fs, nil)

	require.NoError(t, reporter.Write(report))
	require.NoError(t, reporter.Close())

	log := decodeLog(t, writer.Buffer.Bytes())
	run := log.Runs[0]
	require.Len(t, run.Results, 2)

	volatile := run.Results[0]
	assert.Equal(t, "VolatileIncrement", volatile.RuleID)
	require.NotNil(t, volatile.RuleIndex)
	assert.Equal(t, 0, *volatile.RuleIndex)
	assert.Equal(t, sarif.LevelError, volatile.Level)
	require.NotNil(t, volatile.Rank)
	assert.Equal(t, 85.0, *volatile.Rank)
	assert.Len(t, volatile.PartialFingerprints[reporting.FingerprintKey], 40)

	require.Len(t, volatile.Locations, 1)
	loc := volatile.Locations[0]
	assert.Equal(t, "com/example/Counter.java", *loc.PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 12, *loc.PhysicalLocation.Region.StartLine)
	require.Len(t, loc.LogicalLocations, 1)
	assert.Equal(t, "com.example.Counter.increment()V", *loc.LogicalLocations[0].FullyQualifiedName)

	require.Len(t, volatile.RelatedLocations, 1)
	assert.Nil(t, volatile.RelatedLocations[0].PhysicalLocation.Region, "unknown lines have no region")
	assert.Equal(t, 1, *volatile.RelatedLocations[0].ID)
	require.NotNil(t, volatile.Properties)
	assert.Contains(t, (*volatile.Properties)["evidence"], "FIELD=com.example.Counter.count")

	replace := run.Results[1]
	assert.Equal(t, sarif.LevelNote, replace.Level)
	assert.Equal(t, "Shout.class", *replace.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Contains(t, *replace.Message.Text, "Use java.lang.String.toUpperCase(Ljava/util/Locale;)Ljava/lang/String; instead.")

	require.Len(t, run.Invocations, 1)
	assert.True(t, run.Invocations[0].ExecutionSuccessful)
}

func TestSARIFReporter_UndeclaredKindAddsRule(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	f := schemas.Finding{Kind: kindUnknown, Rank: 50, Annotations: schemas.AnnotationSet{schemas.ForType("A")}}
	fs := []schemas.Finding{f}
	require.NoError(t, reporter.Write(results.NewReport(results.Summarize(uuid.New(), fs, nil), fs, nil)))
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
	require.Len(t, run.Tool.Driver.Rules, 4)
	assert.Equal(t, "Undeclared", run.Tool.Driver.Rules[3].ID)
	assert.Equal(t, 3, *run.Results[0].RuleIndex)
	assert.Equal(t, sarif.LevelWarning, run.Results[0].Level)
	assert.Empty(t, run.Results[0].Locations)
}

func TestSARIFReporter_ErrorsBecomeNotifications(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	errs := []schemas.ErrorRecord{
		{Kind: schemas.ErrorRuleRuntime, RuleID: "VolatileIncrement", Method: "A.m()V", Offset: schemas.NoOffset, Cause: errors.New("boom")},
		{Kind: schemas.ErrorAssertion, Method: "A.m()V", Offset: 3, Cause: errors.New("unexpected")},
	}
	require.NoError(t, reporter.Write(results.NewReport(results.Summarize(uuid.New(), nil, errs), nil, errs)))
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
	require.Len(t, run.Invocations, 1)
	inv := run.Invocations[0]
	assert.False(t, inv.ExecutionSuccessful)
	require.Len(t, inv.ToolExecutionNotifications, 2)

	runtime := inv.ToolExecutionNotifications[0]
	assert.Equal(t, sarif.LevelError, runtime.Level)
	assert.Equal(t, "RULE_RUNTIME", runtime.Descriptor.ID)
	assert.Equal(t, "VolatileIncrement", (*runtime.Properties)["ruleId"])
	assert.Contains(t, *runtime.Message.Text, "boom")

	assertion := inv.ToolExecutionNotifications[1]
	assert.Equal(t, sarif.LevelWarning, assertion.Level)
	assert.NotContains(t, *assertion.Properties, "ruleId")
}

func TestSARIFReporter_FingerprintIgnoresLine(t *testing.T) {
	write := func(f schemas.Finding) string {
		reporter, writer := setupSARIFTest(t)
		fs := []schemas.Finding{f}
		require.NoError(t, reporter.Write(results.NewReport(results.Summarize(uuid.New(), fs, nil), fs, nil)))
		require.NoError(t, reporter.Close())
		return decodeLog(t, writer.Buffer.Bytes()).Runs[0].Results[0].PartialFingerprints[reporting.FingerprintKey]
	}

	a := volatileFinding(85)
	b := volatileFinding(85)
	b.Annotations[4] = schemas.ForLocation(schemas.Location{Offset: 4, Line: 99})
	c := volatileFinding(85)
	c.Annotations[4] = schemas.ForLocation(schemas.Location{Offset: 5, Line: 12})

	assert.Equal(t, write(a), write(b))
	assert.NotEqual(t, write(a), write(c))
}

func TestSARIFReporter_IOErrors(t *testing.T) {
	t.Run("write failure", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailWrite = true
		assert.ErrorContains(t, reporter.Close(), "failed to encode SARIF output")
	})

	t.Run("close failure", func(t *testing.T) {
		reporter, writer := setupSARIFTest(t)
		writer.FailClose = true
		assert.ErrorContains(t, reporter.Close(), "failed to close output writer")
	})
}

func TestSARIFReporter_ConcurrentWrites(t *testing.T) {
	reporter, writer := setupSARIFTest(t)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fs := []schemas.Finding{volatileFinding(75)}
			_ = reporter.Write(results.NewReport(results.Summarize(uuid.New(), fs, nil), fs, nil))
		}()
	}
	wg.Wait()
	require.NoError(t, reporter.Close())

	run := decodeLog(t, writer.Buffer.Bytes()).Runs[0]
	assert.Len(t, run.Results, writers)
	assert.Len(t, run.Invocations, writers)
	assert.Len(t, run.Tool.Driver.Rules, 3)
}
