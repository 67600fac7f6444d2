// Package local runs attack payloads against an in-process target
// function, with no server, store or network involved. It is the offline
// harness for testing prompts against a model wrapper directly.
package local

import (
	"context"
	"time"

	"github.com/promptstrike/promptstrike/pkg/detect"
	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/payloads"
	"github.com/promptstrike/promptstrike/pkg/ratelimit"
)

// TargetFunc is the system under test: it takes a prompt and returns the
// model's response.
type TargetFunc func(ctx context.Context, prompt string) (string, error)

// Result is the outcome of one payload against the target function.
type Result struct {
	Payload    payloads.Payload
	Response   string
	Success    bool
	Confidence float64
	Indicators []string
	Duration   time.Duration
	Err        error
}

// CategoryStats aggregates outcomes for one attack category.
type CategoryStats struct {
	Total      int
	Successful int
}

// Summary aggregates a batch of results.
type Summary struct {
	Total         int
	Successful    int
	Failed        int
	Errors        int
	SuccessRate   float64
	AvgConfidence float64
	ByCategory    map[finding.Category]CategoryStats
}

// BatchOptions tunes RunBatch.
type BatchOptions struct {
	// RateLimit caps calls per second; zero means unlimited.
	RateLimit int

	// OnProgress, when set, is called after each payload with the running
	// completed count.
	OnProgress func(completed, total int)

	// OnResult, when set, is called with each result as it is produced.
	OnResult func(Result)
}

// Tester classifies target responses. The zero detector means defaults.
type Tester struct {
	detector *detect.Engine
}

// New creates a local tester. A nil detector falls back to the default
// thresholds.
func New(detector *detect.Engine) *Tester {
	if detector == nil {
		detector = detect.New(detect.Options{})
	}
	return &Tester{detector: detector}
}

// RunPayload sends one payload through the target function and classifies
// the response. Target errors are captured in the result, not returned.
func (t *Tester) RunPayload(ctx context.Context, fn TargetFunc, p payloads.Payload) Result {
	start := time.Now()
	response, err := fn(ctx, p.Content)
	res := Result{
		Payload:  p,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Err = err
		return res
	}

	verdict := t.detector.ClassifyPayload(response, p.Category, p.Content)
	res.Response = response
	res.Success = verdict.Success
	res.Confidence = verdict.Confidence
	res.Indicators = verdict.Indicators
	return res
}

// RunBatch runs every payload in order and aggregates the outcomes.
// Cancelling the context stops the batch; the summary then covers the
// payloads that already ran and the context error is returned.
func (t *Tester) RunBatch(ctx context.Context, fn TargetFunc, list []payloads.Payload, opts BatchOptions) (Summary, []Result, error) {
	var limiter *ratelimit.Limiter
	if opts.RateLimit > 0 {
		limiter = ratelimit.NewPerSecond(opts.RateLimit)
	}

	results := make([]Result, 0, len(list))
	for i, p := range list {
		if err := ctx.Err(); err != nil {
			return summarize(results), results, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return summarize(results), results, err
			}
		}

		res := t.RunPayload(ctx, fn, p)
		results = append(results, res)

		if opts.OnResult != nil {
			opts.OnResult(res)
		}
		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(list))
		}
	}
	return summarize(results), results, nil
}

func summarize(results []Result) Summary {
	s := Summary{
		Total:      len(results),
		ByCategory: make(map[finding.Category]CategoryStats),
	}
	var confSum float64
	var classified int
	for _, r := range results {
		stats := s.ByCategory[r.Payload.Category]
		stats.Total++
		switch {
		case r.Err != nil:
			s.Errors++
		case r.Success:
			s.Successful++
			stats.Successful++
		default:
			s.Failed++
		}
		if r.Err == nil {
			confSum += r.Confidence
			classified++
		}
		s.ByCategory[r.Payload.Category] = stats
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total)
	}
	if classified > 0 {
		s.AvgConfidence = confSum / float64(classified)
	}
	return s
}
