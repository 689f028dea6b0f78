package playback

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// ResolveResponse is the body of a one-shot resolve request
type ResolveResponse struct {
	Time      float64         `json:"time"`
	NextIndex int             `json:"next_index"`
	Result    resolver.Result `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleResolve answers GET /v1/resolve?t=<seconds>[&prior=<index>][&past_end=wrap|hold|none]
func HandleResolve(t *transcript.Transcript, opts Options) http.HandlerFunc {
	if t == nil {
		t = transcript.Empty()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}

		q := r.URL.Query()
		at, err := strconv.ParseFloat(q.Get("t"), 64)
		if err != nil || math.IsNaN(at) || math.IsInf(at, 0) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "t must be a finite number of seconds"})
			return
		}

		prior := 0
		if p := q.Get("prior"); p != "" {
			if prior, err = strconv.Atoi(p); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "prior must be an integer"})
				return
			}
		}

		policy := opts.PastEnd
		if p := q.Get("past_end"); p != "" {
			if policy, err = resolver.ParsePastEndPolicy(p); err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
				return
			}
		}

		start := time.Now()
		result, next := resolver.New(policy).Resolve(t, at, prior)
		observability.RecordResolution(
			observability.Outcome(result.HasSentence(), result.Highlight != nil),
			"http",
			time.Since(start),
		)

		writeJSON(w, http.StatusOK, ResolveResponse{Time: at, NextIndex: next, Result: result})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
