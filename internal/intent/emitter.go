package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"trading-systemv1/internal/model"
)

// summaryLine is the stdout JSON log schema per spec §4.8's intent log
// shape, narrowed to the fields an operator tailing stdout needs without
// reading the full audit payload.
type summaryLine struct {
	EventType             string    `json:"event_type"`
	IntentType            string    `json:"intent_type"`
	Event                 string    `json:"event"`
	Severity              string    `json:"severity"`
	LogTS                 time.Time `json:"log_ts"`
	IntentID              string    `json:"intent_id"`
	StrategyName          string    `json:"strategy_name"`
	Symbol                string    `json:"symbol"`
	Side                  string    `json:"side"`
	Kind                  string    `json:"kind"`
	Confidence            *float64  `json:"confidence,omitempty"`
	ValidUntilUTC         time.Time `json:"valid_until_utc"`
	RequiresHumanApproval bool      `json:"requires_human_approval"`
}

// IntentLogOutcome is the lifecycle stage of one Pipeline.Process
// attempt, one of the three values spec §4.8 allows.
type IntentLogOutcome string

const (
	OutcomeStarted IntentLogOutcome = "started"
	OutcomeSuccess IntentLogOutcome = "success"
	OutcomeFailure IntentLogOutcome = "failure"
)

// IntentLogRecord is the full stdout intent-log schema spec §4.8
// requires — a named record distinct from summaryLine's narrower
// operator-facing digest, carrying the agent-identity block
// (repo_id/agent_name/agent_role/agent_mode/git_sha, grounded on
// original_source/backend/observability/agent_identity.py and
// build_fingerprint.py) plus the started/success/failure lifecycle and
// duration of the pipeline attempt that produced (or dropped) i.
type IntentLogRecord struct {
	Timestamp     time.Time         `json:"timestamp"`
	Level         string            `json:"level"`
	RepoID        string            `json:"repo_id"`
	AgentName     string            `json:"agent_name"`
	AgentRole     string            `json:"agent_role"`
	AgentMode     string            `json:"agent_mode"`
	GitSHA        string            `json:"git_sha"`
	IntentID      string            `json:"intent_id"`
	CorrelationID string            `json:"correlation_id"`
	TraceID       string            `json:"trace_id"`
	IntentType    string            `json:"intent_type"`
	IntentSummary string            `json:"intent_summary"`
	IntentPayload model.AgentIntent `json:"intent_payload"`
	Outcome       IntentLogOutcome  `json:"outcome"`
	DurationMS    *int64            `json:"duration_ms,omitempty"`
}

// Emitter publishes intents via the two channels spec §4.6 requires: a
// stdout JSON summary log and an append-only, redacted NDJSON audit trail.
// It also writes the full §4.8 intent-log record (RepoID/AgentName/
// AgentRole/AgentMode/GitSHA identify the process emitting it).
type Emitter struct {
	Store model.AuditStore
	// Out defaults to os.Stdout.
	Out *os.File

	RepoID    string
	AgentName string
	AgentRole string
	AgentMode string
	GitSHA    string
}

// Emit writes i's stdout summary immediately, then persists the full
// (rationale-redacted) intent to Store. A store failure is logged as a
// second stdout line, never returned — emission must never block or fail
// the caller's strategy cycle.
func (e Emitter) Emit(ctx context.Context, i model.AgentIntent) {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}

	line := summaryLine{
		EventType:             "intent",
		IntentType:            "agent_intent",
		Event:                 "emitted",
		Severity:              "INFO",
		LogTS:                 time.Now().UTC(),
		IntentID:              i.IntentID,
		StrategyName:          i.StrategyName,
		Symbol:                i.Symbol,
		Side:                  string(i.Side),
		Kind:                  string(i.Kind),
		Confidence:            i.Confidence,
		ValidUntilUTC:         i.Constraints.ValidUntilUTC,
		RequiresHumanApproval: i.Constraints.RequiresHumanApproval,
	}
	if b, err := json.Marshal(line); err == nil {
		fmt.Fprintln(out, string(b))
	}

	redacted := i
	redacted.Rationale.IndicatorsMap = Redact(i.Rationale.IndicatorsMap)

	if e.Store == nil {
		return
	}
	if err := e.Store.WriteIntent(ctx, redacted); err != nil {
		fmt.Fprintf(out, `{"event_type":"intent","intent_type":"agent_intent","event":"audit_write_failed","severity":"WARNING","intent_id":%q,"error":%q}%s`,
			i.IntentID, err.Error(), "\n")
	}
}

// EmitLifecycle writes one §4.8 IntentLogRecord to stdout for a single
// started/success/failure stage of a Pipeline.Process attempt on i,
// identified by traceID (one per Process call, so an operator can
// correlate its started record with its terminal one). The payload's
// indicator map is redacted the same way the audit trail's is.
func (e Emitter) EmitLifecycle(i model.AgentIntent, traceID string, outcome IntentLogOutcome, summary string, durationMS *int64) {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}

	payload := i
	payload.Rationale.IndicatorsMap = Redact(i.Rationale.IndicatorsMap)

	level := "INFO"
	if outcome == OutcomeFailure {
		level = "ERROR"
	}

	rec := IntentLogRecord{
		Timestamp:     time.Now().UTC(),
		Level:         level,
		RepoID:        e.RepoID,
		AgentName:     e.AgentName,
		AgentRole:     e.AgentRole,
		AgentMode:     e.AgentMode,
		GitSHA:        e.GitSHA,
		IntentID:      i.IntentID,
		CorrelationID: i.CorrelationID,
		TraceID:       traceID,
		IntentType:    "agent_intent",
		IntentSummary: summary,
		IntentPayload: payload,
		Outcome:       outcome,
		DurationMS:    durationMS,
	}
	if b, err := json.Marshal(rec); err == nil {
		fmt.Fprintln(out, string(b))
	}
}
