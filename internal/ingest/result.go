package ingest

import "time"

// DownloadResult reports per-symbol ingestion counts for one run. Skipped is
// the number of fetched points that were not inserted, whether because the
// store ignored them as duplicates or because a write failed outright.
type DownloadResult struct {
	Symbol       string
	TotalFetched int64
	Inserted     int64
	Skipped      int64
}

// Summary aggregates an ingestion run. Counts may be partial when the run
// returned on a writer wait timeout.
type Summary struct {
	Results        []DownloadResult
	TotalFetched   int64
	TotalInserted  int64
	TotalSkipped   int64
	TotalAttempted int64 // rows handed to the store, successful or not
	Elapsed        time.Duration
	WriterTimedOut bool
}
