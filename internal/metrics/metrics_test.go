package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/njhostel/mysterynight/internal/chase"
	"github.com/njhostel/mysterynight/internal/mysterynight"
)

func TestCounters(t *testing.T) {
	m := New("test")

	m.IdentityResolved(nil)
	m.IdentityResolved(nil)
	m.IdentityResolved(errors.New("db down"))
	m.StageCompleted(mysterynight.StageQuiz)
	m.ChaseResolved(chase.OutcomeLost)
	m.ChaseResolved(chase.OutcomeWon)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"identities ok", testutil.ToFloat64(m.identities.WithLabelValues("ok")), 2},
		{"identities error", testutil.ToFloat64(m.identities.WithLabelValues("error")), 1},
		{"quiz completions", testutil.ToFloat64(m.stagesCompleted.WithLabelValues("quiz")), 1},
		{"chase lost", testutil.ToFloat64(m.chaseOutcomes.WithLabelValues("lost")), 1},
		{"active sessions", testutil.ToFloat64(m.activeSessions), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	m := New("mysterynight")
	m.ObserveRequest(http.MethodGet, "/api/session/state", http.StatusOK, 12*time.Millisecond)
	m.StageCompleted(mysterynight.StageClue)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`mysterynight_http_requests_total{method="GET",route="/api/session/state",status="200"} 1`,
		`mysterynight_stages_completed_total{stage="clue"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
