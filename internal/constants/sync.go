package constants

// SyncOp names the mutation kinds carried on the sync stream.
type SyncOp string

const (
	OpCreate       SyncOp = "CREATE"
	OpBatchCreate  SyncOp = "BATCH_CREATE"
	OpUpdate       SyncOp = "UPDATE"
	OpBatchUpdate  SyncOp = "BATCH_UPDATE"
	OpStatusUpdate SyncOp = "STATUS_UPDATE"
	OpDelete       SyncOp = "DELETE"
)
