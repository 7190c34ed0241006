package config

import "github.com/IshaanNene/ScrapeGoat-And-ArchEnemy/internal/polite"

// BuildFetcherPolicy constructs the immutable polite.FetcherPolicy the
// per-domain scheduler runs under, from PoliteConfig. A CrawlEndEpochMs of
// 0 leaves the crawl-end deadline unset.
func (c *PoliteConfig) BuildFetcherPolicy() polite.FetcherPolicy {
	return polite.NewFetcherPolicy(
		c.CrawlDelay,
		uint32(c.MaxURLsPerDomain),
		uint32(c.ThreadsPerHost),
		uint32(c.RequestsPerBatch),
		c.CrawlEndEpochMs,
	)
}
