package domain

import "time"

// FeedOrigin records whether an endpoint came from index-page discovery
// or from the static fallback list.
type FeedOrigin string

const (
	OriginDiscovered FeedOrigin = "discovered"
	OriginFallback   FeedOrigin = "fallback"
)

// FeedEndpoint is one syndication feed of the publisher. Immutable once
// the registry has produced it.
type FeedEndpoint struct {
	URL    string
	Origin FeedOrigin
}

// ArticleCandidate is an in-memory record parsed from one feed entry,
// not yet persisted. Link is the unique key across the whole pipeline;
// Published is never zero (parse time is the last-resort fallback).
type ArticleCandidate struct {
	Link      string
	Title     string
	Published time.Time
	Summary   string
	Source    string
	Category  string
	Author    string
}

// Article is the persisted form of a candidate. FetchedAt reflects the
// most recent ingestion time, not first-seen time.
type Article struct {
	ID        int64
	Title     string
	Link      string
	Published time.Time
	Summary   string
	Source    string
	Category  string
	Author    string
	FetchedAt time.Time
}
