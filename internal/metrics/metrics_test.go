package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestIncEventDefaultsSource(t *testing.T) {
	before := testutil.ToFloat64(EventsHandledTotal.WithLabelValues("unknown", OutcomeDropped))
	IncEvent("", OutcomeDropped)
	assert.Equal(t, before+1, testutil.ToFloat64(EventsHandledTotal.WithLabelValues("unknown", OutcomeDropped)))
}

func TestIncTransition(t *testing.T) {
	before := testutil.ToFloat64(StatusTransitionsTotal.WithLabelValues("READY"))
	IncTransition("READY")
	assert.Equal(t, before+1, testutil.ToFloat64(StatusTransitionsTotal.WithLabelValues("READY")))
}
