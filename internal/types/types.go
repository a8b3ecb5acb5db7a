// Package types holds the tagged-envelope data model shared by every
// ingestion and retrieval component: chunks, source-type metadata,
// service calls, routes, and the resolved service-relation graph
// primitives. Nothing here depends on chunking, scrubbing, or storage
// internals, so every other package can import it without a cycle.
package types

import "time"

// CorpusType categorizes the originating content of a chunk.
type CorpusType string

const (
	CorpusCodeLogic      CorpusType = "CODE_LOGIC"
	CorpusCodeDeploy     CorpusType = "CODE_DEPLOY"
	CorpusCodeConfig     CorpusType = "CODE_CONFIG"
	CorpusDocReadme      CorpusType = "DOC_README"
	CorpusDocRunbook     CorpusType = "DOC_RUNBOOK"
	CorpusDocADR         CorpusType = "DOC_ADR"
	CorpusDocGoogle      CorpusType = "DOC_GOOGLE"
	CorpusConvoSlack     CorpusType = "CONVO_SLACK"
	CorpusConvoTranscript CorpusType = "CONVO_TRANSCRIPT"
	CorpusConvoOther     CorpusType = "CONVO_OTHER"
)

// Sensitivity is the scrub-gate routing key for a SourceType.
type Sensitivity string

const (
	SensitivityClean          Sensitivity = "CLEAN"
	SensitivityMaybeSensitive Sensitivity = "MAYBE_SENSITIVE"
	SensitivitySensitive      Sensitivity = "SENSITIVE"
)

// ChunkerKind selects which chunker variant handles a source type.
type ChunkerKind string

const (
	ChunkerAST       ChunkerKind = "ast"
	ChunkerYAML      ChunkerKind = "yaml"
	ChunkerMarkdown  ChunkerKind = "markdown"
	ChunkerThread    ChunkerKind = "thread"
	ChunkerWholeFile ChunkerKind = "whole_file"
)

// BM25Tokenizer selects the tokenizer family used when a chunk's text
// is indexed into the BM25 store.
type BM25Tokenizer string

const (
	TokenizerCode BM25Tokenizer = "code"
	TokenizerNLP  BM25Tokenizer = "nlp"
)

// SourceType is a process-wide immutable registry entry keyed by
// CorpusType. It carries every policy decision downstream components
// need: how sensitive the content is, which chunker handles it, and
// which BM25 tokenizer indexes it.
type SourceType struct {
	CorpusType    CorpusType
	Sensitivity   Sensitivity
	ChunkerKind   ChunkerKind
	BM25Tokenizer BM25Tokenizer
}

var registry = map[CorpusType]SourceType{
	CorpusCodeLogic:       {CorpusCodeLogic, SensitivityClean, ChunkerAST, TokenizerCode},
	CorpusCodeDeploy:      {CorpusCodeDeploy, SensitivityMaybeSensitive, ChunkerYAML, TokenizerCode},
	CorpusCodeConfig:      {CorpusCodeConfig, SensitivityMaybeSensitive, ChunkerYAML, TokenizerCode},
	CorpusDocReadme:       {CorpusDocReadme, SensitivityClean, ChunkerMarkdown, TokenizerNLP},
	CorpusDocRunbook:      {CorpusDocRunbook, SensitivityMaybeSensitive, ChunkerMarkdown, TokenizerNLP},
	CorpusDocADR:          {CorpusDocADR, SensitivityClean, ChunkerMarkdown, TokenizerNLP},
	CorpusDocGoogle:       {CorpusDocGoogle, SensitivitySensitive, ChunkerMarkdown, TokenizerNLP},
	CorpusConvoSlack:      {CorpusConvoSlack, SensitivitySensitive, ChunkerThread, TokenizerNLP},
	CorpusConvoTranscript: {CorpusConvoTranscript, SensitivitySensitive, ChunkerThread, TokenizerNLP},
	CorpusConvoOther:      {CorpusConvoOther, SensitivityMaybeSensitive, ChunkerWholeFile, TokenizerNLP},
}

// Lookup returns the registered SourceType for a corpus type. Unknown
// corpus types return the zero value and ok=false; the registry never
// fabricates an entry.
func Lookup(ct CorpusType) (SourceType, bool) {
	st, ok := registry[ct]
	return st, ok
}

// All returns every registered SourceType. The returned slice is a copy;
// mutating it does not affect the registry.
func All() []SourceType {
	out := make([]SourceType, 0, len(registry))
	for _, st := range registry {
		out = append(out, st)
	}
	return out
}

// ByteRange is a half-open [Start, End) range into the decoded source
// bytes a chunk was cut from.
type ByteRange struct {
	Start int
	End   int
}

// Audit records what the scrub gate did to a chunk's text.
type Audit struct {
	Tier          Sensitivity
	EntitiesFound int
	EntityTypes   []string
	SecretsFound  int
	Scrubbed      bool
}

// Metadata is the open-ended, optional bag of fields carried by both
// RawChunk and CleanChunk. Fields are pointers/slices where "absent"
// must stay distinguishable from "zero value".
type Metadata struct {
	RepoName   string
	Language   string
	SymbolName string
	SymbolKind string
	Signature  string
	FilePath   string
	GitHash    string
	SectionPath []string
	Author     string
	Timestamp  *time.Time
	Channel    string
	ThreadID   string
	Imports    []string
	CallsOut   []string
	CalledBy   []string
	ServiceName string
	K8sLabels  map[string]string
}

// Clone returns a deep copy so collections are never aliased across
// the raw -> clean chunk boundary.
func (m Metadata) Clone() Metadata {
	out := m
	out.SectionPath = append([]string(nil), m.SectionPath...)
	out.Imports = append([]string(nil), m.Imports...)
	out.CallsOut = append([]string(nil), m.CallsOut...)
	out.CalledBy = append([]string(nil), m.CalledBy...)
	if m.K8sLabels != nil {
		out.K8sLabels = make(map[string]string, len(m.K8sLabels))
		for k, v := range m.K8sLabels {
			out.K8sLabels[k] = v
		}
	}
	if m.Timestamp != nil {
		t := *m.Timestamp
		out.Timestamp = &t
	}
	return out
}

// RawChunk is the pre-scrub output of the chunker. Never persisted.
type RawChunk struct {
	ID            string
	SourceURI     string
	ByteRange     ByteRange
	SourceType    SourceType
	Text          string
	ContextPrefix string
	Metadata      Metadata
}

// CleanChunk is the post-scrub canonical chunk, the unit of storage.
// When the gate chose passthrough, Audit is nil and Text is
// bit-identical to the raw text.
type CleanChunk struct {
	ID            string
	SourceURI     string
	ByteRange     ByteRange
	SourceType    SourceType
	Text          string
	ContextPrefix string
	Metadata      Metadata
	Audit         *Audit
}

// EmbeddedChunk is a CleanChunk plus its unit-length embedding vector.
type EmbeddedChunk struct {
	CleanChunk
	Vector []float32
}

// CallType enumerates the kinds of outbound service calls the AST
// chunker's call-site pass can detect.
type CallType string

const (
	CallHTTP           CallType = "http"
	CallGRPC           CallType = "grpc"
	CallQueuePublish   CallType = "queue_publish"
	CallQueueSubscribe CallType = "queue_subscribe"
)

// Confidence levels a detected ServiceCall may carry. Exactly these four
// values are ever produced; nothing interpolates between them.
const (
	ConfidenceHigh  = 0.9 // literal URL
	ConfidenceMed   = 0.7 // interpolation/template
	ConfidenceLow   = 0.5 // variable
	ConfidenceGuess = 0.3 // heuristic
)

// ServiceCall is a detected outbound call site.
type ServiceCall struct {
	SourceFile    string
	TargetService string
	CallType      CallType
	LineNumber    int
	Confidence    float64
	Method        string
	URLPath       string
	TargetHost    string
}

// RouteDefinition is a framework-registered method+path -> handler
// mapping. Path segments of the form "{name}" match exactly one
// non-empty request path segment.
type RouteDefinition struct {
	Service        string
	Method         string
	Path           string
	HandlerFile    string
	HandlerFunction string
	LineNumber     int
}

// RelationType enumerates how a ServiceCall was resolved into a
// ServiceRelation.
type RelationType string

const (
	RelationHTTP     RelationType = "http"
	RelationSynthetic RelationType = "synthetic"
)

// ServiceRelation is a ServiceCall successfully bound to a handler.
type ServiceRelation struct {
	SourceFile     string
	SourceLine     int
	TargetFile     string
	TargetFunction string
	TargetLine     int
	RelationType   RelationType
	RoutePath      string
}

// MissReason is a typed explanation for why the call linker could not
// bind a ServiceCall to a route. A miss is telemetry, not an error.
type MissReason string

const (
	MissNoRoutes      MissReason = "no_routes"
	MissMethodMismatch MissReason = "method_mismatch"
	MissPathMismatch  MissReason = "path_mismatch"
)

// LinkMiss records a typed linker miss, useful for telemetry.
type LinkMiss struct {
	Call   ServiceCall
	Reason MissReason
}

// ServiceNode is a graph node discovered from a CODE_DEPLOY chunk.
type ServiceNode struct {
	Name          string
	RepoName      string
	Language      string
	K8sNamespace  string
	Ports         []int
	DeployChunkIDs []string
}

// EdgeType classifies a ServiceEdge by the raw target string that
// produced it.
type EdgeType string

const (
	EdgeHTTP    EdgeType = "http"
	EdgeGRPC    EdgeType = "grpc"
	EdgeQueue   EdgeType = "queue"
	EdgeDB      EdgeType = "db"
	EdgeUnknown EdgeType = "unknown"
)

// ServiceEdge is a directed dependency edge between two ServiceNodes.
type ServiceEdge struct {
	Source            string
	Target             string
	EdgeType            EdgeType
	EvidenceChunkIDs    []string
	URLPattern          string
}

// BatchResult reports the outcome of a batch indexing operation.
// PartialSuccess is true when Inserted > 0 and Failed is non-empty.
type BatchResult struct {
	Inserted       int
	Failed         []FailedItem
	PartialSuccess bool
}

// FailedItem pairs a chunk ID with the error that dropped it from a
// batch operation.
type FailedItem struct {
	ID    string
	Error string
}

// NewBatchResult computes PartialSuccess from Inserted/Failed.
func NewBatchResult(inserted int, failed []FailedItem) BatchResult {
	return BatchResult{
		Inserted:       inserted,
		Failed:         failed,
		PartialSuccess: inserted > 0 && len(failed) > 0,
	}
}
