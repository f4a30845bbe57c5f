package escalation

import (
	"context"
	"fmt"

	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/metrics"
)

const (
	diagnoseThreshold = 2
	ticketThreshold   = 3
)

// Failure describes one stage that has exhausted its retry budget.
type Failure struct {
	EntityID     string
	TenantID     string
	Stage        string
	FailureCount int
	Err          error
}

// Diagnosis is the result of examining an exhausted failure.
type Diagnosis struct {
	Class    FailureClass
	Severity Severity
	Summary  string
}

// Ticket is an operator work item for a failure that needs a human.
type Ticket struct {
	EntityID     string
	TenantID     string
	Stage        string
	FailureCount int
	Diagnosis    Diagnosis
}

// TicketSink receives filed tickets. Implementations must not assume the
// caller waits on anything beyond the error return.
type TicketSink interface {
	FileTicket(ctx context.Context, t Ticket) error
}

// Diagnoser produces a diagnosis for a failure. The default implementation
// is a pure classification heuristic.
type Diagnoser interface {
	Diagnose(f Failure) Diagnosis
}

// HeuristicDiagnoser classifies by error inspection alone.
type HeuristicDiagnoser struct{}

// Diagnose implements Diagnoser.
func (HeuristicDiagnoser) Diagnose(f Failure) Diagnosis {
	class := Classify(f.Err)
	return Diagnosis{
		Class:    class,
		Severity: severityFor(class),
		Summary:  fmt.Sprintf("stage %s failed %d time(s): %v", f.Stage, f.FailureCount, f.Err),
	}
}

// LogTicketSink writes tickets to the application log. The default sink
// when no external tracker is configured.
type LogTicketSink struct{}

// FileTicket implements TicketSink.
func (LogTicketSink) FileTicket(ctx context.Context, t Ticket) error {
	logging.Error("TICKET [%s] asset=%s tenant=%s stage=%s failures=%d class=%s: %s",
		t.Diagnosis.Severity, t.EntityID, t.TenantID, t.Stage, t.FailureCount,
		t.Diagnosis.Class, t.Diagnosis.Summary)
	return nil
}

// Decision records what the policy chose to do for a failure.
type Decision struct {
	Diagnosed bool
	Ticketed  bool
	Diagnosis Diagnosis
}

// Policy applies the escalation rules for exhausted stage failures.
type Policy struct {
	diagnoser Diagnoser
	sink      TicketSink
}

// NewPolicy creates a policy with the given diagnoser and ticket sink.
// Nil arguments fall back to the heuristic diagnoser and the log sink.
func NewPolicy(d Diagnoser, s TicketSink) *Policy {
	if d == nil {
		d = HeuristicDiagnoser{}
	}
	if s == nil {
		s = LogTicketSink{}
	}
	return &Policy{diagnoser: d, sink: s}
}

// OnStageFailureExhausted decides whether to diagnose and whether to file a
// ticket. Diagnosis runs when the failure count reaches 2 or the failure is
// a timeout; a ticket is filed when the count reaches 3 or the diagnosis
// came back at the highest severity. Sink errors are logged, never
// propagated: escalation must not take the chain down with it.
func (p *Policy) OnStageFailureExhausted(ctx context.Context, f Failure) Decision {
	var d Decision

	class := Classify(f.Err)
	if f.FailureCount >= diagnoseThreshold || class == ClassTimeout {
		d.Diagnosed = true
		d.Diagnosis = p.diagnoser.Diagnose(f)
		metrics.EscalationsTotal.WithLabelValues("diagnose").Inc()
		logging.Warn("Diagnosed failure for asset %s stage %s: class=%s severity=%s",
			f.EntityID, f.Stage, d.Diagnosis.Class, d.Diagnosis.Severity)
	}

	if f.FailureCount >= ticketThreshold || (d.Diagnosed && d.Diagnosis.Severity == SeverityHigh) {
		d.Ticketed = true
		if !d.Diagnosed {
			d.Diagnosed = true
			d.Diagnosis = p.diagnoser.Diagnose(f)
		}
		ticket := Ticket{
			EntityID:     f.EntityID,
			TenantID:     f.TenantID,
			Stage:        f.Stage,
			FailureCount: f.FailureCount,
			Diagnosis:    d.Diagnosis,
		}
		if err := p.sink.FileTicket(ctx, ticket); err != nil {
			logging.Error("Failed to file escalation ticket for asset %s: %v", f.EntityID, err)
		}
		metrics.EscalationsTotal.WithLabelValues("ticket").Inc()
	}

	return d
}
