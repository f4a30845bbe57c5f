package escalation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

type recordingSink struct {
	tickets []Ticket
}

func (s *recordingSink) FileTicket(ctx context.Context, t Ticket) error {
	s.tickets = append(s.tickets, t)
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"deadline exceeded", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("stage: %w", context.DeadlineExceeded), ClassTimeout},
		{"timeout message", errors.New("operation timed out after 30s"), ClassTimeout},
		{"permission sentinel", os.ErrPermission, ClassPermission},
		{"permission message", errors.New("open /data/x: permission denied"), ClassPermission},
		{"disk full", errors.New("write /tmp/t: no space left on device"), ClassResourceExhaustion},
		{"fd exhaustion", errors.New("accept: too many open files"), ClassResourceExhaustion},
		{"missing file", errors.New("open /blobs/a: no such file or directory"), ClassStorageRead},
		{"io error", errors.New("read /blobs/a: input/output error"), ClassStorageRead},
		{"mystery", errors.New("something odd happened"), ClassUnknown},
		{"nil", nil, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestPolicyDecisions(t *testing.T) {
	tests := []struct {
		name         string
		count        int
		err          error
		wantDiagnose bool
		wantTicket   bool
	}{
		{"first unknown failure", 1, errors.New("odd"), false, false},
		{"first timeout diagnoses", 1, context.DeadlineExceeded, true, false},
		{"second failure diagnoses", 2, errors.New("odd"), true, false},
		{"third failure tickets", 3, errors.New("odd"), true, true},
		{"high severity tickets early", 2, os.ErrPermission, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			policy := NewPolicy(nil, sink)

			d := policy.OnStageFailureExhausted(context.Background(), Failure{
				EntityID:     "asset-1",
				TenantID:     "tenant-1",
				Stage:        "generate-thumbnails",
				FailureCount: tt.count,
				Err:          tt.err,
			})

			if d.Diagnosed != tt.wantDiagnose {
				t.Errorf("Diagnosed = %v, want %v", d.Diagnosed, tt.wantDiagnose)
			}
			if d.Ticketed != tt.wantTicket {
				t.Errorf("Ticketed = %v, want %v", d.Ticketed, tt.wantTicket)
			}
			if got := len(sink.tickets) == 1; got != tt.wantTicket {
				t.Errorf("sink received %d tickets, want ticket=%v", len(sink.tickets), tt.wantTicket)
			}
		})
	}
}

func TestThreeFailuresProduceDiagnosisAndTicket(t *testing.T) {
	sink := &recordingSink{}
	policy := NewPolicy(nil, sink)
	err := errors.New("read /blobs/orig: input/output error")

	var last Decision
	for count := 1; count <= 3; count++ {
		last = policy.OnStageFailureExhausted(context.Background(), Failure{
			EntityID:     "asset-9",
			TenantID:     "tenant-1",
			Stage:        "extract-metadata",
			FailureCount: count,
			Err:          err,
		})
	}

	if !last.Diagnosed || !last.Ticketed {
		t.Fatalf("after 3 failures want diagnose+ticket, got %+v", last)
	}
	if len(sink.tickets) != 1 {
		t.Fatalf("expected exactly one ticket, got %d", len(sink.tickets))
	}
	ticket := sink.tickets[0]
	if ticket.Diagnosis.Class != ClassStorageRead {
		t.Errorf("ticket class = %s, want %s", ticket.Diagnosis.Class, ClassStorageRead)
	}
	if ticket.FailureCount != 3 {
		t.Errorf("ticket failure count = %d, want 3", ticket.FailureCount)
	}
}
