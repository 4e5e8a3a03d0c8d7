package validator

// Step identifies one stage of the fixed five-stage pipeline. Stages always
// run in this order and the pipeline halts at the first failing stage.
type Step string

const (
	StepBalance    Step = "BALANCE"
	StepIdentity   Step = "IDENTITY"
	StepLimit      Step = "LIMIT"
	StepAnomaly    Step = "ANOMALY"
	StepCompliance Step = "COMPLIANCE"
)

// AnomalyType classifies a stage-4 failure.
type AnomalyType string

const (
	AnomalyFrequency AnomalyType = "FREQUENCY"
	AnomalyVolume    AnomalyType = "VOLUME"
	AnomalySpike     AnomalyType = "SPIKE"
)

// SchemaVersion tags serialized validation results persisted as snapshots.
const SchemaVersion = 1

// StepResult is one stage's outcome, appended to the run's ordered sequence.
type StepResult struct {
	Step    Step           `json:"step"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Result is the overall pipeline outcome. Failures are data, not errors:
// callers inspect FailedStep and the step sequence to see exactly what
// stopped the transaction.
type Result struct {
	SchemaVersion            int          `json:"schema_version"`
	Valid                    bool         `json:"valid"`
	Steps                    []StepResult `json:"steps"`
	FailedStep               Step         `json:"failed_step,omitempty"`
	RequiresExplicitApproval bool         `json:"requires_explicit_approval"`
	ApprovalReason           string       `json:"approval_reason,omitempty"`
}
