package polite

// buildAbortedRecord produces a synthetic completion record for a URL
// still queued when the crawl window closes, per spec.md §6's "Aborted
// record encoding": status ABORTED, http code sentinel UNKNOWN, both URL
// fields equal to the normalized URL, all timing fields zero, content
// empty, metadata bag carried through verbatim.
func buildAbortedRecord(u ScoredURL) AbortedRecord {
	return AbortedRecord{
		Status:         StatusAborted,
		HTTPCode:       HTTPCodeUnknown,
		RequestedURL:   u.NormalizedURL,
		FinalURL:       u.NormalizedURL,
		RequestEpochMs: 0,
		FetchEpochMs:   0,
		Headers:        nil,
		Body:           nil,
		ContentType:    "",
		BytesPerSecond: 0,
		Metadata:       u.Metadata,
	}
}
