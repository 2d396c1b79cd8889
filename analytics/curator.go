package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/telemetry"
)

// DefaultExcludePatterns are dropped from training data unless the config
// says otherwise.
var DefaultExcludePatterns = []string{"error", "failed", "timeout", "invalid"}

// CurationCommand is the command text of curation provenance records.
const CurationCommand = "prepare_training_data"

// ExampleOutput is what the model should learn to produce.
type ExampleOutput struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Reasoning  string         `json:"reasoning"`
}

// ExampleMetadata describes where an example came from.
type ExampleMetadata struct {
	Success       bool    `json:"success"`
	ExecutionTime float64 `json:"execution_time"`
}

// TrainingExample is one input/output pair of the fine-tuning dataset.
type TrainingExample struct {
	Input    string          `json:"input"`
	Output   ExampleOutput   `json:"output"`
	Metadata ExampleMetadata `json:"metadata"`
}

// TrainingConfig controls PrepareTrainingData.
type TrainingConfig struct {
	// ExcludePatterns are matched case-insensitively against command and
	// reasoning. Nil selects DefaultExcludePatterns; an empty slice excludes
	// nothing.
	ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns" validate:"dive,required"`
	// MinSamplesPerTool drops tools with fewer examples.
	MinSamplesPerTool int `json:"min_samples_per_tool" yaml:"min_samples_per_tool" validate:"gte=0"`
	// MaxSamplesPerTool truncates each tool after sorting by execution time.
	// Zero means unlimited.
	MaxSamplesPerTool int `json:"max_samples_per_tool" yaml:"max_samples_per_tool" validate:"omitempty,gte=0,gtefield=MinSamplesPerTool"`
}

// DefaultTrainingConfig returns the stock curation settings.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		ExcludePatterns:   append([]string(nil), DefaultExcludePatterns...),
		MinSamplesPerTool: 1,
		MaxSamplesPerTool: 100,
	}
}

// TrainingSet is the balanced output of PrepareTrainingData.
type TrainingSet struct {
	Examples     []TrainingExample `json:"examples"`
	PerTool      map[string]int    `json:"per_tool"`
	Candidates   int               `json:"candidates"`
	Excluded     int               `json:"excluded"`
	DroppedTools []string          `json:"dropped_tools"`
}

// Curator builds fine-tuning data from interaction records and writes a
// provenance record for every curation run.
type Curator struct {
	store    telemetry.Store
	opts     Options
	validate *validator.Validate
}

// NewCurator creates a Curator over store.
func NewCurator(store telemetry.Store, optFns ...func(o *Options)) *Curator {
	return &Curator{store: store, opts: newOptions(optFns), validate: validator.New()}
}

// GenerateFineTuningDataset maps every successful interaction with an
// analysis to a training example, oldest first.
func (c *Curator) GenerateFineTuningDataset(ctx context.Context) ([]TrainingExample, error) {
	recs, err := c.store.TailInteractions(ctx, c.opts.TailLines)
	if err != nil {
		return nil, fmt.Errorf("generate dataset: %w", err)
	}
	out := make([]TrainingExample, 0, len(recs))
	for _, r := range recs {
		if !r.Success || r.Analysis == nil || r.Analysis.ToolName == "" {
			continue
		}
		out = append(out, TrainingExample{
			Input: r.Command,
			Output: ExampleOutput{
				ToolName:   r.Analysis.ToolName,
				Parameters: r.Analysis.Parameters,
				Reasoning:  r.Analysis.Reasoning,
			},
			Metadata: ExampleMetadata{Success: r.Success, ExecutionTime: r.Metadata.ExecutionTime},
		})
	}
	return out, nil
}

// PrepareTrainingData filters, groups and balances the dataset per cfg.
func (c *Curator) PrepareTrainingData(ctx context.Context, cfg TrainingConfig) (*TrainingSet, error) {
	start := c.opts.Now()
	set, err := c.prepare(ctx, &cfg)
	c.recordProvenance(ctx, cfg, set, err, c.opts.Now().Sub(start))
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (c *Curator) prepare(ctx context.Context, cfg *TrainingConfig) (*TrainingSet, error) {
	if cfg.ExcludePatterns == nil {
		cfg.ExcludePatterns = append([]string(nil), DefaultExcludePatterns...)
	}
	if err := c.validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: training config: %s", core.ErrValidation, verrs.Error())
		}
		return nil, fmt.Errorf("%w: training config: %v", core.ErrValidation, err)
	}

	examples, err := c.GenerateFineTuningDataset(ctx)
	if err != nil {
		return nil, err
	}

	patterns := make([]string, len(cfg.ExcludePatterns))
	for i, p := range cfg.ExcludePatterns {
		patterns[i] = strings.ToLower(p)
	}

	set := &TrainingSet{PerTool: map[string]int{}, DroppedTools: []string{}, Candidates: len(examples)}
	groups := make(map[string][]TrainingExample)
	for _, ex := range examples {
		if !ex.Metadata.Success || excluded(ex, patterns) {
			set.Excluded++
			continue
		}
		groups[ex.Output.ToolName] = append(groups[ex.Output.ToolName], ex)
	}

	tools := make([]string, 0, len(groups))
	for name := range groups {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	set.Examples = []TrainingExample{}
	for _, name := range tools {
		group := groups[name]
		if len(group) < cfg.MinSamplesPerTool {
			set.DroppedTools = append(set.DroppedTools, name)
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Metadata.ExecutionTime < group[j].Metadata.ExecutionTime
		})
		if cfg.MaxSamplesPerTool > 0 && len(group) > cfg.MaxSamplesPerTool {
			group = group[:cfg.MaxSamplesPerTool]
		}
		set.PerTool[name] = len(group)
		set.Examples = append(set.Examples, group...)
	}
	return set, nil
}

func excluded(ex TrainingExample, patterns []string) bool {
	command := strings.ToLower(ex.Input)
	reasoning := strings.ToLower(ex.Output.Reasoning)
	for _, p := range patterns {
		if strings.Contains(command, p) || strings.Contains(reasoning, p) {
			return true
		}
	}
	return false
}

func (c *Curator) recordProvenance(ctx context.Context, cfg TrainingConfig, set *TrainingSet, err error, elapsed time.Duration) {
	rec := telemetry.InteractionRecord{
		Command: CurationCommand,
		Success: err == nil,
		Metadata: telemetry.InteractionMetadata{
			ExecutionTime: elapsed.Seconds(),
			Phase:         telemetry.PhaseFinished,
			Extra: map[string]any{
				"exclude_patterns":     cfg.ExcludePatterns,
				"min_samples_per_tool": cfg.MinSamplesPerTool,
				"max_samples_per_tool": cfg.MaxSamplesPerTool,
			},
		},
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Result = map[string]any{
			"examples":      len(set.Examples),
			"candidates":    set.Candidates,
			"excluded":      set.Excluded,
			"per_tool":      set.PerTool,
			"dropped_tools": set.DroppedTools,
		}
	}
	if recErr := c.store.RecordInteraction(context.WithoutCancel(ctx), rec); recErr != nil {
		c.opts.Logger.Warn("Failed to record curation provenance", "error", recErr.Error())
	}
}

// WriteJSONL writes one example per line.
func WriteJSONL(w io.Writer, examples []TrainingExample) error {
	enc := json.NewEncoder(w)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
	}
	return nil
}
