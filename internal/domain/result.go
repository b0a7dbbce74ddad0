package domain

import "time"

// GenerationResult is the outcome of the retry-wrapped AI call. It is a
// transient value and never persisted as-is; the processor folds it into
// session columns. Callers branch on OK instead of recovering panics or
// sniffing error strings.
type GenerationResult struct {
	OK         bool
	Data       []byte
	MIME       string
	Err        error
	RetryCount int
	Elapsed    time.Duration
}

// Generated builds a successful result. retries is the number of failed
// attempts that preceded the success.
func Generated(data []byte, mime string, retries int, elapsed time.Duration) GenerationResult {
	return GenerationResult{OK: true, Data: data, MIME: mime, RetryCount: retries, Elapsed: elapsed}
}

// GenerationFailed builds a failed result carrying the last error observed.
func GenerationFailed(err error, retries int, elapsed time.Duration) GenerationResult {
	return GenerationResult{OK: false, Err: err, RetryCount: retries, Elapsed: elapsed}
}
