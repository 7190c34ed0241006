package polite

// FetchRequest is a policy-derived release plan produced within a single
// poll: how many URLs to release now, and the earliest time the next
// request to this host may begin.
type FetchRequest struct {
	// NumURLs is the number of URLs to release in the upcoming batch.
	NumURLs uint32

	// NextRequestEpochMs is the earliest wall-clock instant (epoch
	// milliseconds) at which the next single-threaded dispatch may begin.
	NextRequestEpochMs int64
}
