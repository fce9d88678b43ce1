package model

import "time"

// SearchHistoryEntry 一条搜索历史
type SearchHistoryEntry struct {
	Keyword     string    `json:"keyword"`
	SourceType  string    `json:"source_type"`
	ResultCount int       `json:"result_count"`
	SearchedAt  time.Time `json:"searched_at"`
}
