package data

import (
	"context"
	"strings"
	"testing"
	"time"

	"Switchyard/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditEventFor(t *testing.T) {
	tests := []struct {
		name string
		tr   model.CircuitTransition
		want AuditEventType
	}{
		{"opened", model.CircuitTransition{From: model.CircuitClosed, To: model.CircuitOpen}, AuditEventCircuitOpened},
		{"reopened from half-open", model.CircuitTransition{From: model.CircuitHalfOpen, To: model.CircuitOpen}, AuditEventCircuitOpened},
		{"probing", model.CircuitTransition{From: model.CircuitOpen, To: model.CircuitHalfOpen}, AuditEventCircuitProbing},
		{"recovered", model.CircuitTransition{From: model.CircuitHalfOpen, To: model.CircuitClosed}, AuditEventCircuitRecovered},
		{"forced open", model.CircuitTransition{From: model.CircuitClosed, To: model.CircuitOpen, Manual: true}, AuditEventCircuitForcedOpen},
		{"forced close", model.CircuitTransition{From: model.CircuitOpen, To: model.CircuitClosed, Manual: true}, AuditEventCircuitForcedClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AuditEventFor(tt.tr))
		})
	}
}

func TestNewCircuitAuditLog(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	row, err := newCircuitAuditLog(model.CircuitTransition{
		ProviderID: "studio-a",
		From:       model.CircuitClosed,
		To:         model.CircuitOpen,
		Reason:     strings.Repeat("x", 300),
		At:         at,
		Snapshot:   *testSnapshot("studio-a", model.CircuitOpen),
	})
	require.NoError(t, err)

	assert.Equal(t, "studio-a", row.ProviderID)
	assert.Equal(t, "CIRCUIT_OPENED", row.ActionType)
	assert.Equal(t, "CLOSED", row.FromState)
	assert.Equal(t, "OPEN", row.ToState)
	assert.Len(t, row.Reason, 255)
	assert.Contains(t, row.Details, `"state":"OPEN"`)
	assert.Equal(t, at, row.OccurredAt)
	assert.Equal(t, "provider_circuit_audit_logs", row.TableName())
}

func TestCircuitAuditLogger_OnTransitionNeverBlocks(t *testing.T) {
	d, _ := newTestData(t)
	a, cleanup := NewCircuitAuditLogger(d, log.DefaultLogger)

	for i := 0; i < asyncWriterBuffer+10; i++ {
		a.OnTransition(context.Background(), model.CircuitTransition{ProviderID: "studio-a", To: model.CircuitOpen})
	}
	cleanup()
}

func TestNoopWebhookService_OnTransition(t *testing.T) {
	s := NewNoopWebhookService(log.DefaultLogger)
	s.OnTransition(context.Background(), model.CircuitTransition{ProviderID: "studio-a", To: model.CircuitOpen})
	s.OnTransition(context.Background(), model.CircuitTransition{ProviderID: "studio-a", To: model.CircuitClosed})
	s.OnTransition(context.Background(), model.CircuitTransition{ProviderID: "studio-a", To: model.CircuitHalfOpen})
}
