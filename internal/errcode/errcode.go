package errcode

// Error code convention:
// - 0: no error
// - 4xxx: recoverable business conditions (caller can present or retry)
// - 5xxx: system errors (flow must stop)
const (
	OK = 0

	NotFound       = 4004
	DuplicateEmail = 4009
	SyncBusy       = 4029
	BackupBusy     = 4030

	SystemError = 5000
)
