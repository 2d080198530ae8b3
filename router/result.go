package router

import "github.com/vocaresume/vocaresume"

// Result is the outcome of routing one query.
type Result struct {
	TaskIndex    int
	Label        string
	Score        float64
	Alternatives []vocaresume.Alternative
}

// DefaultResult is returned for blank queries and when no task label scored.
func DefaultResult() Result {
	return Result{
		TaskIndex:    0,
		Label:        LabelAnalysis,
		Score:        0,
		Alternatives: []vocaresume.Alternative{},
	}
}

// Response converts r to the daemon wire type.
func (r Result) Response(requestID int, backend Backend) vocaresume.RouteResponse {
	alts := r.Alternatives
	if alts == nil {
		alts = []vocaresume.Alternative{}
	}
	return vocaresume.RouteResponse{
		RequestID:    requestID,
		TaskIndex:    r.TaskIndex,
		Label:        r.Label,
		Score:        r.Score,
		Alternatives: alts,
		Backend:      string(backend),
	}
}
