package syncer

import "errors"

// Sentinel errors classifying backend failures. Callers branch on these with
// errors.Is; the wrapped error keeps the underlying detail.
var (
	// ErrAuth means the token was rejected or expired. Terminal for the
	// whole sync run: retrying other trips with the same token is pointless.
	ErrAuth = errors.New("authentication rejected")

	// ErrDuplicate means the backend already has this trip (client UUID
	// matched). Treated as success so retries stay idempotent.
	ErrDuplicate = errors.New("trip already uploaded")

	// ErrNetwork covers transport failures and 5xx responses. Retryable.
	ErrNetwork = errors.New("network error")

	// ErrSyncRunning is returned when a sync run is already in flight.
	ErrSyncRunning = errors.New("sync already running")
)

func isAuth(err error) bool      { return errors.Is(err, ErrAuth) }
func isDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
func isNetwork(err error) bool   { return errors.Is(err, ErrNetwork) }
