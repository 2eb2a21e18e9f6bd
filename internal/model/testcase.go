package model

// TestCase is a single labeled corpus entry: a support ticket and the
// category a correct classifier should assign it. Immutable after corpus
// load; IDs are unique and stable across runs.
type TestCase struct {
	ID       int    `json:"id"`
	Ticket   string `json:"ticket"`
	Expected string `json:"expected"`
}

// CorpusInfo summarizes the loaded test corpus.
type CorpusInfo struct {
	Total          int            `json:"total"`
	Categories     []string       `json:"categories"`
	CategoryCounts map[string]int `json:"category_counts"`
}
