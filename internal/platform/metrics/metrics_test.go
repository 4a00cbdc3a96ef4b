package metrics

import (
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
)

func TestCanonicalPathCollapsesIDs(t *testing.T) {
	cases := map[string]string{
		"/":                         "/",
		"/alerts":                   "/alerts",
		"/alerts/3fa85f64-5717-4562-b3fc-2c963f66afa6": "/alerts/:id",
		"/rule-templates/abc123":                       "/rule-templates/abc123",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecorderObserveEvaluationDoesNotPanic(t *testing.T) {
	Recorder{}.ObserveEvaluation(domain.DecisionAllow, 5*time.Millisecond)
	RecordAlertCreated("HIGH")
	RecordAlertSuppressed("")
}
