package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/invitetree/internal/app/system/apperr"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{apperr.NotFound("user %s", "x"), "not_found"},
		{apperr.BadRequest("core member"), "rejected"},
		{fmt.Errorf("walk: %w", apperr.CorruptTree("cycle")), "corrupt"},
		{errors.New("connection reset"), "error"},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPruneOperationsCounter(t *testing.T) {
	c := PruneOperations.WithLabelValues("execute", "ok")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Errorf("counter = %v, want %v", got, before+1)
	}
}
