package model

// AnomalyThreshold is the confidence floor below which a tick is flagged as
// anomalous and drift is presumed detected.
const AnomalyThreshold = 0.7

// DriftPoint is one confidence observation in the rolling drift window.
type DriftPoint struct {
	Timestamp       string  `json:"timestamp"`
	Confidence      float64 `json:"confidence"`
	ErrorRate       float64 `json:"errorRate"`
	AnomalyDetected bool    `json:"anomalyDetected"`
}

// NewDriftPoint derives the error rate and anomaly flag from a confidence
// observation.
func NewDriftPoint(timestamp string, confidence float64) DriftPoint {
	return DriftPoint{
		Timestamp:       timestamp,
		Confidence:      confidence,
		ErrorRate:       1 - confidence,
		AnomalyDetected: confidence < AnomalyThreshold,
	}
}

// BiasLevel summarizes the Bias indicator of an audit for the record log.
type BiasLevel string

const (
	BiasLevelNone   BiasLevel = "None"
	BiasLevelLow    BiasLevel = "Low"
	BiasLevelMedium BiasLevel = "Medium"
	BiasLevelHigh   BiasLevel = "High"
)

// LogicConsistency summarizes the Logic indicator of an audit.
type LogicConsistency string

const (
	LogicStable  LogicConsistency = "Stable"
	LogicWarning LogicConsistency = "Warning"
	LogicRisk    LogicConsistency = "Risk"
)

// RiskFindings is the condensed risk summary attached to each audit record.
type RiskFindings struct {
	BiasLevel        BiasLevel        `json:"biasLevel"`
	DriftDetected    bool             `json:"driftDetected"`
	LogicConsistency LogicConsistency `json:"logicConsistency"`
}

// AuditRecord is one entry in the bounded audit log: the triple that was
// analyzed, the full result, and the derived risk summary.
type AuditRecord struct {
	AuditID         string         `json:"auditId"`
	Timestamp       string         `json:"timestamp"`
	InputSnapshot   map[string]any `json:"inputSnapshot"`
	OutputSnapshot  map[string]any `json:"outputSnapshot"`
	ConfidenceScore float64        `json:"confidenceScore"`
	Result          AuditResult    `json:"result"`
	RiskFindings    RiskFindings   `json:"riskFindings"`
}
