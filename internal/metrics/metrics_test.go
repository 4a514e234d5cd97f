package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStorageOpRecordsCompletion(t *testing.T) {
	before := testutil.ToFloat64(storageOpsTotal.WithLabelValues("load"))

	done := ObserveStorageOp("load")
	done()

	after := testutil.ToFloat64(storageOpsTotal.WithLabelValues("load"))
	assert.Equal(t, before+1, after)
}

func TestObserveHasherJobIncrementsThenDecrementsCurrent(t *testing.T) {
	before := testutil.ToFloat64(hasherJobsCurrent)
	done := ObserveHasherJob()
	assert.Equal(t, before+1, testutil.ToFloat64(hasherJobsCurrent))
	done()
	assert.Equal(t, before, testutil.ToFloat64(hasherJobsCurrent))
}

func TestSetNetctrlInFlightSetsGaugeValue(t *testing.T) {
	SetNetctrlInFlight("dev1", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(netctrlRequestsInFlight.WithLabelValues("dev1")))
}

func TestIncNetctrlBlockCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(netctrlBlocksTotal.WithLabelValues("dev2", "ok"))
	IncNetctrlBlock("dev2", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(netctrlBlocksTotal.WithLabelValues("dev2", "ok")))
}
