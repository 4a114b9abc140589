package sarif

// This file defines the Go structs for the SARIF 2.1.0 standard.
// Pointers are used for optional fields. Required fields use value types.

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

type Run struct {
	Tool        *Tool         `json:"tool"`
	Invocations []*Invocation `json:"invocations,omitempty"`
	Results     []*Result     `json:"results"`
	Properties  *PropertyBag  `json:"properties,omitempty"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

// ToolComponent describes the tool that produced the results. Pointers are used for optional bits.
type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

type ReportingDescriptor struct {
	ID               string                    `json:"id"` // Required
	Name             *string                   `json:"name,omitempty"`
	ShortDescription *MultiformatMessageString `json:"shortDescription,omitempty"`
	FullDescription  *MultiformatMessageString `json:"fullDescription,omitempty"`
	Help             *MultiformatMessageString `json:"help,omitempty"`
	Properties       *PropertyBag              `json:"properties,omitempty"`
}

// Invocation records whether the run completed cleanly and the non-fatal
// problems it hit along the way.
type Invocation struct {
	ExecutionSuccessful        bool            `json:"executionSuccessful"`
	ToolExecutionNotifications []*Notification `json:"toolExecutionNotifications,omitempty"`
}

type Notification struct {
	Message    *Message     `json:"message"`
	Level      Level        `json:"level,omitempty"`
	Descriptor *Reference   `json:"descriptor,omitempty"`
	Locations  []*Location  `json:"locations,omitempty"`
	Properties *PropertyBag `json:"properties,omitempty"`
}

// Reference points at a descriptor by ID.
type Reference struct {
	ID string `json:"id"`
}

type Result struct {
	RuleID              string            `json:"ruleId"` // Required
	RuleIndex           *int              `json:"ruleIndex,omitempty"`
	Message             *Message          `json:"message"`
	Level               Level             `json:"level,omitempty"`
	Rank                *float64          `json:"rank,omitempty"`
	Locations           []*Location       `json:"locations,omitempty"`
	RelatedLocations    []*Location       `json:"relatedLocations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *PropertyBag      `json:"properties,omitempty"`
}

type Location struct {
	ID               *int               `json:"id,omitempty"`
	PhysicalLocation *PhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []*LogicalLocation `json:"logicalLocations,omitempty"`
	Message          *Message           `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *Region           `json:"region,omitempty"`
}

type ArtifactLocation struct {
	URI *string `json:"uri,omitempty"`
}

// Region narrows a physical location to a line. Byte offsets of the
// analyzed code are kept in the result properties, since SARIF byte offsets
// refer to the artifact itself.
type Region struct {
	StartLine *int `json:"startLine,omitempty"`
}

type LogicalLocation struct {
	Name               *string `json:"name,omitempty"`
	FullyQualifiedName *string `json:"fullyQualifiedName,omitempty"`
	Kind               *string `json:"kind,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)
