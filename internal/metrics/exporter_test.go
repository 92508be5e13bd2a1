package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPublishTotal_Increments(t *testing.T) {
	PublishTotal.Reset()
	PublishTotal.WithLabelValues(ResultOK).Inc()
	PublishTotal.WithLabelValues(ResultSkipped).Inc()
	PublishTotal.WithLabelValues(ResultSkipped).Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(PublishTotal.WithLabelValues(ResultOK)))
	assert.Equal(t, float64(2), testutil.ToFloat64(PublishTotal.WithLabelValues(ResultSkipped)))
}

func TestResolveDurationSeconds_Observe(t *testing.T) {
	assert.NotPanics(t, func() {
		ResolveDurationSeconds.Observe(0.042)
	})
}

func TestMaterializeTotal_Increments(t *testing.T) {
	MaterializeTotal.Reset()
	MaterializeTotal.WithLabelValues(ResultError).Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(MaterializeTotal.WithLabelValues(ResultError)))
}

func TestHandler_ServesRegistry(t *testing.T) {
	assert.NotNil(t, Handler())
}
