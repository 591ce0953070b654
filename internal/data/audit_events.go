package data

import "Switchyard/internal/model"

// AuditEventType is the action_type column of provider_circuit_audit_logs.
type AuditEventType string

const (
	// AuditEventCircuitOpened is logged when failures open a circuit.
	AuditEventCircuitOpened AuditEventType = "CIRCUIT_OPENED"
	// AuditEventCircuitProbing is logged when an open circuit starts probing.
	AuditEventCircuitProbing AuditEventType = "CIRCUIT_HALF_OPENED"
	// AuditEventCircuitRecovered is logged when trial calls close a circuit.
	AuditEventCircuitRecovered AuditEventType = "CIRCUIT_RECOVERED"
	// AuditEventCircuitForcedOpen is logged when an operator opens a circuit.
	AuditEventCircuitForcedOpen AuditEventType = "CIRCUIT_FORCED_OPEN"
	// AuditEventCircuitForcedClose is logged when a circuit is closed outside the automatic edges.
	AuditEventCircuitForcedClose AuditEventType = "CIRCUIT_FORCED_CLOSE"
)

// String returns the string representation of AuditEventType.
func (e AuditEventType) String() string {
	return string(e)
}

// AuditEventFor maps a transition to its audit event type.
func AuditEventFor(t model.CircuitTransition) AuditEventType {
	switch {
	case t.Manual && t.To == model.CircuitOpen:
		return AuditEventCircuitForcedOpen
	case t.Manual:
		return AuditEventCircuitForcedClose
	case t.To == model.CircuitOpen:
		return AuditEventCircuitOpened
	case t.To == model.CircuitHalfOpen:
		return AuditEventCircuitProbing
	default:
		return AuditEventCircuitRecovered
	}
}
