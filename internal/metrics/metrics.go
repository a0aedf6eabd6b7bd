// Package metrics publishes the service counters through expvar; they are
// served at /metrics together with the runtime's memstats and cmdline.
package metrics

import "expvar"

var (
	counters = expvar.NewMap("transactionlog")

	UsersCreated         = newCounter("users_created")
	TransactionsCreated  = newCounter("transactions_created")
	TransactionsRejected = newCounter("transactions_rejected")
	TransactionsInvalid  = newCounter("transactions_invalid")
	BatchesIngested      = newCounter("batches_ingested")
	BatchesFailed        = newCounter("batches_failed")
	LoginsFailed         = newCounter("logins_failed")
)

func newCounter(name string) *expvar.Int {
	v := new(expvar.Int)
	counters.Set(name, v)
	return v
}

// Snapshot returns the current counter values by name.
func Snapshot() map[string]int64 {
	out := make(map[string]int64)
	counters.Do(func(kv expvar.KeyValue) {
		if v, ok := kv.Value.(*expvar.Int); ok {
			out[kv.Key] = v.Value()
		}
	})
	return out
}
