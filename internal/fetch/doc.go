// Package fetch provides batch.Fetcher implementations: an HTTP fetcher that
// downloads each item from a base URL, and a simulated fetcher with random
// latency and failures.
package fetch
