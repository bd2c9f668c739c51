package common

import (
	"context"
	"log"
	"spruce/src/lib"
	"spruce/src/notify"
	"spruce/src/store"
	"spruce/src/types"
	"time"
)

const monitorInterval = 5 * time.Minute

// staleAfter is how long a transaction may sit in pending or processing
// before it counts as stuck. Sagas normally settle in seconds.
const staleAfter = 15 * time.Minute

// StartTransactionMonitor runs a recurring sweep for sagas that died
// between steps, for example a process crash after the hold was placed
// but before the confirm. Stuck rows are surfaced to operators; the
// monitor never mutates them itself.
func StartTransactionMonitor(st store.Store, notifier notify.Notifier) {
	_, err := lib.CreateCronJob(func() {
		sweepStaleTransactions(st, notifier)
	}, monitorInterval)
	if err != nil {
		log.Printf("[Monitor] Error registering transaction monitor: %s\n", err.Error())
	}
}

func sweepStaleTransactions(st store.Store, notifier notify.Notifier) {
	ctx := context.Background()
	cutoff := time.Now().Add(-staleAfter)
	rows, err := st.ListStaleTransactions(ctx, cutoff)
	if err != nil {
		log.Printf("[Monitor] Error listing stale transactions: %s\n", err.Error())
		return
	}
	if len(rows) == 0 {
		return
	}
	log.Printf("[Monitor] Found %d stuck transactions\n", len(rows))
	for _, tr := range rows {
		log.Printf("[Monitor] Transaction %s stuck in %s since %s\n", tr.ID, tr.Status, tr.CreatedAt)
		if notifier != nil {
			notifier.Send(ctx, 0, "transaction.stuck", types.JSONB{
				"transaction_id": tr.ID.String(),
				"status":         string(tr.Status),
				"created_at":     tr.CreatedAt.Format(time.RFC3339),
			})
		}
	}
}
