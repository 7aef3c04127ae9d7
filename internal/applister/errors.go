package applister

import "errors"

var (
	// ErrStoreTransaction marks a failed inventory write. The previous snapshot is left intact.
	ErrStoreTransaction = errors.New("store transaction failed")

	// ErrFeedUnavailable marks a threat feed that is unreachable or not configured.
	// Callers treat it as "no threats".
	ErrFeedUnavailable = errors.New("threat feed unavailable")
)
