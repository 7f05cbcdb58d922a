package model

// FrontierEntry is a URL waiting to be crawled together with its link
// distance from the nearest seed.
type FrontierEntry struct {
	// URL is always normalized.
	URL string

	// Depth is 0 for seeds.
	Depth int
}
