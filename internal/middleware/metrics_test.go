package middleware

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func testutilCounter(t *testing.T, method, route, status string) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, httpRequestsTotal.WithLabelValues(method, route, status).Write(&m))
	return m.GetCounter().GetValue()
}
