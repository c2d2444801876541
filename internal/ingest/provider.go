// Package ingest holds what every workout-history importer shares.
package ingest

import "fmt"

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int      `json:"sessions_received"`
	SessionsImported int      `json:"sessions_imported"`
	SessionsFailed   int      `json:"sessions_failed"`
	SetsImported     int      `json:"sets_imported"`
	RecordsSet       int      `json:"records_set"`
	Errors           []string `json:"errors,omitempty"`

	Message string `json:"message,omitempty"`
}

// Fail records a session that could not be imported.
func (r *Result) Fail(session string, err error) {
	r.SessionsFailed++
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", session, err))
}

// Merge adds the counts of o to r.
func (r *Result) Merge(o *Result) {
	if o == nil {
		return
	}
	r.SessionsReceived += o.SessionsReceived
	r.SessionsImported += o.SessionsImported
	r.SessionsFailed += o.SessionsFailed
	r.SetsImported += o.SetsImported
	r.RecordsSet += o.RecordsSet
	r.Errors = append(r.Errors, o.Errors...)
}
