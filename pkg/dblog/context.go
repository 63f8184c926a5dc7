package dblog

import "log/slog"

// WithComponent scopes a logger to one subsystem: "buffer", "hashindex",
// or "lock".
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

// WithPage scopes a logger to one page id, for buffer pool frame
// bookkeeping.
func WithPage(pageID int32) *slog.Logger {
	return Get().With("page_id", pageID)
}

// WithTx scopes a logger to one transaction id.
func WithTx(txnID int64) *slog.Logger {
	return Get().With("txn_id", txnID)
}

// WithLock scopes a logger to one transaction's request against one RID.
func WithLock(txnID int64, resource string) *slog.Logger {
	return Get().With("txn_id", txnID, "resource", resource)
}
