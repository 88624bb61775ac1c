package stats

import (
	"expvar"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewStatsUpdater(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	assert.NotNil(t, su, "expected StatsUpdater to be non-nil")
	assert.NotNil(t, su.updateChan, "expected updateChan to be initialized")
	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/debug/vars"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /debug/vars to be set")
	assert.Equal(t, "GET /debug/vars", pattern, "expected handler to be registered for GET method on /debug/vars")
}

func TestNewStatsUpdater_ReusesExportedMap(t *testing.T) {
	su1 := NewStatsUpdater(http.NewServeMux())
	su2 := NewStatsUpdater(http.NewServeMux())
	assert.Same(t, su1.vars, su2.vars, "expected both updaters to share the exported map")
}

func TestStatsUpdater_IncrDecrAdd(t *testing.T) {
	mux := http.NewServeMux()
	su := NewStatsUpdater(mux)
	su.RegisterMetric(NumConnections)

	su.Run()
	defer su.Stop()

	su.Incr(NumConnections)
	su.Incr(NumConnections)
	su.Decr(NumConnections)
	su.Add(NumConnections, 3)

	assert.Eventually(t, func() bool {
		metric, ok := su.vars.Get(NumConnections).(*expvar.Int)
		return ok && metric.Value() == 4
	}, time.Second, 10*time.Millisecond, "expected metric to settle at 4")
}
