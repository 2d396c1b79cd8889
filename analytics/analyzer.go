package analytics

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/TSGCFO/langchain-agent/logging"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// DefaultTailLines bounds how many records of each stream are read.
const DefaultTailLines = 10000

const (
	topParameters = 10
	topErrors     = 5
	topPhrases    = 20
	minPhraseLen  = 5
	maxPhraseLen  = 15
)

// reasoningPattern matches phrasings like "using calculator because ...".
var reasoningPattern = regexp.MustCompile(`(?i)\b(using|chose|selected|need)\s+(\w+)\s+(because|since|as|to)\s+(\w+)`)

// Options configures an Analyzer or Curator.
type Options struct {
	// Now is the clock windows are measured from. Defaults to time.Now.
	Now func() time.Time
	// TailLines defaults to DefaultTailLines.
	TailLines int
	Logger    logging.Logger
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{Now: time.Now, TailLines: DefaultTailLines, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TailLines <= 0 {
		opts.TailLines = DefaultTailLines
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}

// Count is a value with its number of occurrences.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ToolStats summarizes the usage of one tool.
type ToolStats struct {
	Uses        int     `json:"uses"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
	// AvgResponseTime is in seconds.
	AvgResponseTime  float64 `json:"avg_response_time"`
	CommonParameters []Count `json:"common_parameters"`
	CommonErrors     []Count `json:"common_errors"`
}

// PatternStats counts one canonical reasoning pattern.
type PatternStats struct {
	Pattern     string  `json:"pattern"`
	Count       int     `json:"count"`
	Successes   int     `json:"successes"`
	SuccessRate float64 `json:"success_rate"`
}

// ReasoningAnalysis summarizes the reasoning text of interactions.
type ReasoningAnalysis struct {
	Samples  int            `json:"samples"`
	Patterns []PatternStats `json:"patterns"`
	// AverageLength is in characters.
	AverageLength float64 `json:"average_length"`
	CommonPhrases []Count `json:"common_phrases"`
}

// PerformanceMetrics are the headline numbers over a window.
type PerformanceMetrics struct {
	WindowDays   int     `json:"window_days"`
	Interactions int     `json:"interactions"`
	Evaluations  int     `json:"evaluations"`
	SuccessRate  float64 `json:"success_rate"`
	// AverageExecutionTime is in seconds.
	AverageExecutionTime  float64 `json:"average_execution_time"`
	ToolSelectionAccuracy float64 `json:"tool_selection_accuracy"`
	ReasoningQuality      float64 `json:"reasoning_quality"`
	TaskCompletionRate    float64 `json:"task_completion_rate"`
}

// Analyzer computes statistics from a telemetry.Reader.
type Analyzer struct {
	reader telemetry.Reader
	opts   Options
}

// NewAnalyzer creates an Analyzer reading from r.
func NewAnalyzer(r telemetry.Reader, optFns ...func(o *Options)) *Analyzer {
	return &Analyzer{reader: r, opts: newOptions(optFns)}
}

// cutoff returns the start of the trailing window, or the zero time when
// windowDays is not positive (no window).
func (a *Analyzer) cutoff(windowDays int) time.Time {
	if windowDays <= 0 {
		return time.Time{}
	}
	return a.opts.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)
}

// AnalyzeToolUsage groups tool usage records of the trailing window by tool.
func (a *Analyzer) AnalyzeToolUsage(ctx context.Context, windowDays int) (map[string]ToolStats, error) {
	recs, err := a.reader.TailToolUsage(ctx, a.opts.TailLines)
	if err != nil {
		return nil, fmt.Errorf("analyze tool usage: %w", err)
	}
	from := a.cutoff(windowDays)

	type acc struct {
		uses, successes int
		totalTime       float64
		params, errs    map[string]int
	}
	byTool := make(map[string]*acc)
	for _, r := range recs {
		if r.Timestamp.Before(from) {
			continue
		}
		t := byTool[r.ToolName]
		if t == nil {
			t = &acc{params: map[string]int{}, errs: map[string]int{}}
			byTool[r.ToolName] = t
		}
		t.uses++
		t.totalTime += r.ExecutionTime
		if r.Success {
			t.successes++
		} else if r.Error != "" {
			t.errs[r.Error]++
		}
		for k := range r.Parameters {
			t.params[k]++
		}
	}

	out := make(map[string]ToolStats, len(byTool))
	for name, t := range byTool {
		out[name] = ToolStats{
			Uses:             t.uses,
			Successes:        t.successes,
			SuccessRate:      float64(t.successes) / float64(t.uses),
			AvgResponseTime:  t.totalTime / float64(t.uses),
			CommonParameters: topCounts(t.params, topParameters),
			CommonErrors:     topCounts(t.errs, topErrors),
		}
	}
	return out, nil
}

// AnalyzeReasoning extracts reasoning patterns, mean length and common
// phrases from every interaction that carries reasoning.
func (a *Analyzer) AnalyzeReasoning(ctx context.Context) (*ReasoningAnalysis, error) {
	recs, err := a.reader.TailInteractions(ctx, a.opts.TailLines)
	if err != nil {
		return nil, fmt.Errorf("analyze reasoning: %w", err)
	}

	type acc struct{ count, successes int }
	patterns := make(map[string]*acc)
	phrases := make(map[string]int)
	res := &ReasoningAnalysis{Patterns: []PatternStats{}, CommonPhrases: []Count{}}
	totalLen := 0

	for _, r := range recs {
		if r.Analysis == nil || strings.TrimSpace(r.Analysis.Reasoning) == "" {
			continue
		}
		text := r.Analysis.Reasoning
		res.Samples++
		totalLen += utf8.RuneCountInString(text)

		for _, m := range reasoningPattern.FindAllStringSubmatch(text, -1) {
			key := strings.ToLower(m[1] + " x " + m[3])
			p := patterns[key]
			if p == nil {
				p = &acc{}
				patterns[key] = p
			}
			p.count++
			if r.Success {
				p.successes++
			}
		}

		words := strings.FieldsFunc(strings.ToLower(text), func(c rune) bool {
			return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '\''
		})
		for n := minPhraseLen; n <= maxPhraseLen && n <= len(words); n++ {
			for i := 0; i+n <= len(words); i++ {
				phrases[strings.Join(words[i:i+n], " ")]++
			}
		}
	}

	if res.Samples > 0 {
		res.AverageLength = float64(totalLen) / float64(res.Samples)
	}
	for key, p := range patterns {
		res.Patterns = append(res.Patterns, PatternStats{
			Pattern:     key,
			Count:       p.count,
			Successes:   p.successes,
			SuccessRate: float64(p.successes) / float64(p.count),
		})
	}
	sort.Slice(res.Patterns, func(i, j int) bool {
		if res.Patterns[i].Count != res.Patterns[j].Count {
			return res.Patterns[i].Count > res.Patterns[j].Count
		}
		return res.Patterns[i].Pattern < res.Patterns[j].Pattern
	})
	res.CommonPhrases = topCounts(phrases, topPhrases)
	return res, nil
}

// CalculatePerformanceMetrics computes success rate and execution time from
// interactions and averages evaluation metrics, all over the trailing window.
func (a *Analyzer) CalculatePerformanceMetrics(ctx context.Context, windowDays int) (*PerformanceMetrics, error) {
	interactions, err := a.reader.TailInteractions(ctx, a.opts.TailLines)
	if err != nil {
		return nil, fmt.Errorf("performance metrics: %w", err)
	}
	evaluations, err := a.reader.TailEvaluations(ctx, a.opts.TailLines)
	if err != nil {
		return nil, fmt.Errorf("performance metrics: %w", err)
	}
	from := a.cutoff(windowDays)

	m := &PerformanceMetrics{WindowDays: windowDays}
	var successes int
	var totalTime float64
	for _, r := range interactions {
		if r.Timestamp.Before(from) {
			continue
		}
		m.Interactions++
		totalTime += r.Metadata.ExecutionTime
		if r.Success {
			successes++
		}
	}
	if m.Interactions > 0 {
		m.SuccessRate = float64(successes) / float64(m.Interactions)
		m.AverageExecutionTime = totalTime / float64(m.Interactions)
	}

	var accuracy, quality float64
	for _, e := range evaluations {
		if e.Timestamp.Before(from) {
			continue
		}
		m.Evaluations++
		accuracy += e.Metrics.ToolSelectionAccuracy
		quality += e.Metrics.ReasoningQuality
	}
	if m.Evaluations > 0 {
		m.ToolSelectionAccuracy = accuracy / float64(m.Evaluations)
		m.ReasoningQuality = quality / float64(m.Evaluations)
	}
	m.TaskCompletionRate = m.SuccessRate
	return m, nil
}

// topCounts returns the n most frequent values, ties broken lexicographically.
func topCounts(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for v, c := range counts {
		out = append(out, Count{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
