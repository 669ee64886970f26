package buildcache

import "time"

// lockPollInterval is how often TryLockContext retries the fingerprint's
// file lock while waiting for a concurrent restore/store to finish.
const lockPollInterval = 25 * time.Millisecond
