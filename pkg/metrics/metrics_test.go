package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectorsOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })
	// registering twice on the same registry is a programming error
	require.Panics(t, func() { RegisterCollectors(reg) })
}

func TestObserveStore(t *testing.T) {
	okBefore := testutil.ToFloat64(StoreOperations.WithLabelValues("save", "ok"))
	errBefore := testutil.ToFloat64(StoreOperations.WithLabelValues("save", "error"))

	ObserveStore("save", nil)
	ObserveStore("save", errors.New("disk full"))
	ObserveStore("save", nil)

	require.Equal(t, okBefore+2, testutil.ToFloat64(StoreOperations.WithLabelValues("save", "ok")))
	require.Equal(t, errBefore+1, testutil.ToFloat64(StoreOperations.WithLabelValues("save", "error")))
}
