package models

// MassActionResult is the aggregate outcome of one mass operation. It is
// constructed fresh per operation and never persisted. Succeeded+Failed
// always equals Total.
type MassActionResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// AllFailed builds the result reported when a batched call fails at the
// transport level: a total failure, never a partial guess.
func AllFailed(total int, msg string) MassActionResult {
	return MassActionResult{
		Total:  total,
		Failed: total,
		Errors: []string{msg},
	}
}
