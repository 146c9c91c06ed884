package model

import "encoding/json"

// SearchRequest is the body accepted by both search routes.
// The public API documents "keyword"; the web client sends "q".
type SearchRequest struct {
	Q       string `json:"q"`
	Keyword string `json:"keyword"`
}

// Query returns whichever field was supplied.
func (r SearchRequest) Query() string {
	if r.Q != "" {
		return r.Q
	}
	return r.Keyword
}

// SearchResponse is returned to callers. Results are opaque backend objects.
type SearchResponse struct {
	Query              string            `json:"query"`
	Results            []json.RawMessage `json:"results"`
	TotalResults       int               `json:"total_results"`
	TotalFilesSearched int               `json:"total_files_searched,omitempty"`
	ExecutionTime      float64           `json:"execution_time,omitempty"`
	Masked             bool              `json:"masked"`
}
