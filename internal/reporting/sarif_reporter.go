// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/reporting/sarif"
	"github.com/xkilldash9x/bugscan/internal/results"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "bugscan"
	ToolInfoURI  = "https://github.com/xkilldash9x/bugscan"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

	// FingerprintKey names the partial fingerprint of each result.
	FingerprintKey = "bugscanFinding/v1"
)

// Rank thresholds for SARIF levels.
const (
	errorRank   = 70
	warningRank = 40
)

// fingerprint identifies a finding across runs by kind, method and best
// offset. Line numbers are left out so edits elsewhere in the file do not
// change it.
func fingerprint(f schemas.Finding) string {
	h := sha1.New()
	method, _ := f.Method()
	offset := schemas.NoOffset
	if loc, ok := f.BestLocation(); ok {
		offset = loc.Offset
	}
	fmt.Fprintf(h, "%s\x00%s\x00%d", f.Kind.Name, method, offset)
	return hex.EncodeToString(h.Sum(nil))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and ruleIndex.
	mu        sync.Mutex
	ruleIndex map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output. Every
// kind in opts becomes a rule of the driver.
func NewSARIFReporter(writer io.WriteCloser, logger *zap.Logger, opts Options) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(opts.ToolVersion),
						InformationURI: pString(ToolInfoURI),
						// Initialize empty slices (not nil) for proper JSON marshalling
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	r := &SARIFReporter{
		writer:    writer,
		logger:    logger.Named("sarif_reporter"),
		log:       log,
		ruleIndex: make(map[string]int),
	}
	for _, k := range opts.Kinds {
		r.ensureRule(k)
	}
	return r
}

// Write adds every finding of the report as a result and every error record
// as a tool execution notification.
func (r *SARIFReporter) Write(report *results.Report) error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	for _, finding := range report.Findings {
		run.Results = append(run.Results, r.createResult(finding))
	}

	invocation := &sarif.Invocation{ExecutionSuccessful: len(report.Errors) == 0}
	for _, rec := range report.Errors {
		invocation.ToolExecutionNotifications = append(invocation.ToolExecutionNotifications, createNotification(rec))
	}
	run.Invocations = append(run.Invocations, invocation)
	run.Properties = &sarif.PropertyBag{
		"runId":       report.Summary.RunID.String(),
		"highestRank": report.Summary.HighestRank,
	}

	r.logger.Debug("Wrote findings to SARIF buffer",
		zap.Int("findings_count", len(report.Findings)),
		zap.Int("errors_count", len(report.Errors)),
		zap.Duration("duration_ms", time.Since(startTime)),
	)
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// ensureRule returns the index of the rule describing kind, adding it on
// first use. Kinds emitted without being passed to the constructor are
// registered lazily.
// NOTE: Must be called while holding the mutex, or from the constructor.
func (r *SARIFReporter) ensureRule(kind schemas.FindingKind) int {
	if idx, exists := r.ruleIndex[kind.Name]; exists {
		return idx
	}

	driver := r.log.Runs[0].Tool.Driver
	short := fmt.Sprintf("%s (%s)", kind.Name, kind.Category)
	markdownHelp := fmt.Sprintf("**Kind:** %s\n\n**Category:** %s\n\n**Base rank:** %d",
		kind.Name, kind.Category, kind.BaseRank)

	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               kind.Name,
		Name:             pString(kind.Name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(short)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(short),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags":     []string{kind.Category},
			"baseRank": kind.BaseRank,
		},
	})
	idx := len(driver.Rules) - 1
	r.ruleIndex[kind.Name] = idx
	return idx
}

func (r *SARIFReporter) createResult(finding schemas.Finding) *sarif.Result {
	idx := r.ensureRule(finding.Kind)
	rank := float64(min(max(finding.Rank, 0), 100))

	result := &sarif.Result{
		RuleID:              finding.Kind.Name,
		RuleIndex:           &idx,
		Message:             &sarif.Message{Text: pString(finding.String())},
		Level:               levelForRank(finding.Rank),
		Rank:                &rank,
		PartialFingerprints: map[string]string{FingerprintKey: fingerprint(finding)},
	}

	var evidence []string
	for _, a := range finding.Annotations {
		switch a.Role {
		case schemas.RoleLocation:
			result.Locations = []*sarif.Location{createLocation(finding, a.Location, nil)}
		case schemas.RoleAnotherInstance:
			id := len(result.RelatedLocations) + 1
			loc := createLocation(finding, a.Location, pString("Another instance"))
			loc.ID = &id
			result.RelatedLocations = append(result.RelatedLocations, loc)
		case schemas.RoleType, schemas.RoleSourceFile, schemas.RoleMethod:
		default:
			evidence = append(evidence, a.String())
		}
	}
	if len(evidence) > 0 {
		result.Properties = &sarif.PropertyBag{"evidence": evidence}
	}
	if hint, ok := finding.Annotations.Find(schemas.RoleReplacement); ok {
		text := fmt.Sprintf("%s. Use %s instead.", finding, hint.Member)
		result.Message.Text = &text
	}
	return result
}

// createLocation maps an offset of the finding's method onto its source file
// and the method as a logical location.
func createLocation(finding schemas.Finding, loc schemas.Location, msg *string) *sarif.Location {
	physical := &sarif.PhysicalLocation{
		ArtifactLocation: &sarif.ArtifactLocation{URI: pString(artifactURI(finding))},
	}
	if loc.HasLine() {
		line := loc.Line
		physical.Region = &sarif.Region{StartLine: &line}
	}

	out := &sarif.Location{PhysicalLocation: physical}
	if method, ok := finding.Method(); ok {
		out.LogicalLocations = []*sarif.LogicalLocation{{
			Name:               pString(method.Name),
			FullyQualifiedName: pString(method.String()),
			Kind:               pString("function"),
		}}
	}
	if msg != nil {
		out.Message = &sarif.Message{Text: msg}
	}
	return out
}

// artifactURI is the source file next to the type's package directory, or
// the class file when the source file is unknown.
func artifactURI(finding schemas.Finding) string {
	typ, _ := finding.Annotations.Find(schemas.RoleType)
	src, ok := finding.Annotations.Find(schemas.RoleSourceFile)
	if !ok || src.Text == "" {
		return typ.Text + ".class"
	}
	dir := path.Dir(typ.Text)
	if dir == "." {
		return src.Text
	}
	return dir + "/" + src.Text
}

func createNotification(rec schemas.ErrorRecord) *sarif.Notification {
	level := sarif.LevelError
	if rec.Kind == schemas.ErrorAssertion {
		level = sarif.LevelWarning
	}
	n := &sarif.Notification{
		Message:    &sarif.Message{Text: pString(rec.Error())},
		Level:      level,
		Descriptor: &sarif.Reference{ID: string(rec.Kind)},
		Properties: &sarif.PropertyBag{"method": rec.Method, "offset": rec.Offset},
	}
	if rec.RuleID != "" {
		(*n.Properties)["ruleId"] = rec.RuleID
	}
	return n
}

// levelForRank maps a finding's rank to a SARIF level.
func levelForRank(rank int) sarif.Level {
	switch {
	case rank >= errorRank:
		return sarif.LevelError
	case rank >= warningRank:
		return sarif.LevelWarning
	default:
		return sarif.LevelNote
	}
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
