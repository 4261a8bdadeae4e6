// Package planner expands a campaign config into a deterministic, totally
// ordered list of PlannedRun rows.
package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/codeready-toolchain/kitt/pkg/campaignconfig"
	"github.com/codeready-toolchain/kitt/pkg/ledger"
	"github.com/gobwas/glob"
)

// Format identifies which model reference an engine consumes.
type Format string

const (
	FormatSafetensors Format = "safetensors"
	FormatGGUF        Format = "gguf"
	FormatOllama      Format = "ollama"
)

// engineFormats lists, per known engine name, the formats it can consume
// in preference order. An engine not listed here is treated as
// safetensors-only, the most common case.
var engineFormats = map[string][]Format{
	"vllm":      {FormatSafetensors},
	"tgi":       {FormatSafetensors},
	"llama_cpp": {FormatGGUF},
	"ollama":    {FormatOllama},
}

// QuantCandidate is one discovered quantisation for a model/format pair.
type QuantCandidate struct {
	Quant       string
	EstimatedGB float64
}

// QuantDiscoverer enumerates quants available for a model in a given
// format. Real discovery (a HuggingFace file listing, an Ollama tag page)
// is an external collaborator out of scope for model-file introspection
// here; this interface is the seam for it.
type QuantDiscoverer interface {
	Discover(ctx context.Context, model campaignconfig.Model, format Format) ([]QuantCandidate, error)
}

// DefaultDiscoverer implements the "no quant family" fallback: a single
// bf16 placeholder for raw safetensors/GGUF repos, or
// the literal ollama tag as a one-quant "family" for ollama references.
// Hooking up real multi-quant enumeration means swapping this out for an
// implementation backed by the registry/provider APIs.
type DefaultDiscoverer struct{}

func (DefaultDiscoverer) Discover(_ context.Context, model campaignconfig.Model, format Format) ([]QuantCandidate, error) {
	size := model.EstimatedSizeGB
	switch format {
	case FormatSafetensors:
		return []QuantCandidate{{Quant: "bf16", EstimatedGB: size}}, nil
	case FormatGGUF:
		return []QuantCandidate{{Quant: "bf16", EstimatedGB: size}}, nil
	case FormatOllama:
		return []QuantCandidate{{Quant: model.OllamaTag, EstimatedGB: size}}, nil
	default:
		return nil, fmt.Errorf("planner: unknown format %q", format)
	}
}

// SkippedRun records why a (model, engine) pair produced no PlannedRun.
type SkippedRun struct {
	Model  string
	Engine string
	Reason string
}

// Plan expands cfg into PlannedRun rows for campaignID, in final sort
// order, plus the pairs that were skipped and why. Discoverer may be nil,
// in which case DefaultDiscoverer is used.
func Plan(ctx context.Context, campaignID string, cfg campaignconfig.Config, discoverer QuantDiscoverer) ([]ledger.PlannedRun, []SkippedRun, error) {
	if discoverer == nil {
		discoverer = DefaultDiscoverer{}
	}

	skipGlobs, err := compileGlobs(cfg.QuantFilter.SkipPatterns)
	if err != nil {
		return nil, nil, fmt.Errorf("planner: compile skip_patterns: %w", err)
	}
	includeGlobs, err := compileGlobs(cfg.QuantFilter.IncludeOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("planner: compile include_only: %w", err)
	}

	var runs []ledger.PlannedRun
	var skipped []SkippedRun

	for _, model := range cfg.Models {
		for _, engine := range cfg.Engines {
			format, ref := chooseFormat(model, engine)
			if ref == "" {
				skipped = append(skipped, SkippedRun{Model: model.Name, Engine: engine.Name, Reason: "no compatible format"})
				continue
			}

			candidates, err := discoverer.Discover(ctx, model, format)
			if err != nil {
				return nil, nil, fmt.Errorf("planner: discover quants for %s/%s: %w", model.Name, engine.Name, err)
			}

			for _, cand := range candidates {
				if !passesQuantFilter(cand.Quant, skipGlobs, includeGlobs) {
					continue
				}

				sizeGB := cand.EstimatedGB
				exceedsSize := cfg.ResourceLimits.MaxModelSizeGB > 0 && sizeGB > cfg.ResourceLimits.MaxModelSizeGB

				for _, benchmark := range cfg.Benchmarks {
					run := ledger.PlannedRun{
						CampaignID:      campaignID,
						ModelRef:        ref,
						EngineName:      engine.Name,
						EngineMode:      engine.Mode,
						BenchmarkName:   benchmark,
						SuiteName:       engine.Suite,
						Quant:           cand.Quant,
						EstimatedSizeGB: sizeGB,
						Status:          ledger.RunStatusPending,
					}
					if exceedsSize {
						run.Status = ledger.RunStatusSkipped
						run.ErrorKind = string(ledger.ErrorKindResourceExceed)
						run.ErrorMessage = fmt.Sprintf("size %.1fGB exceeds max_model_size_gb %.1fGB", sizeGB, cfg.ResourceLimits.MaxModelSizeGB)
					}
					runs = append(runs, run)
				}
			}
		}
	}

	sortRuns(runs)
	return runs, skipped, nil
}

// chooseFormat picks the first format the engine supports that the model
// has a reference for, returning "" if none applies.
func chooseFormat(model campaignconfig.Model, engine campaignconfig.Engine) (Format, string) {
	formats, ok := engineFormats[engine.Name]
	if !ok {
		formats = []Format{FormatSafetensors}
	}
	for _, f := range formats {
		switch f {
		case FormatSafetensors:
			if model.SafetensorsRepo != "" {
				return f, model.SafetensorsRepo
			}
		case FormatGGUF:
			if model.GGUFRepo != "" {
				return f, model.GGUFRepo
			}
		case FormatOllama:
			if model.OllamaTag != "" {
				return f, model.OllamaTag
			}
		}
	}
	return "", ""
}

// passesQuantFilter applies skip_patterns (subtract) then include_only
// (intersect) over the quant token.
func passesQuantFilter(quant string, skip, include []glob.Glob) bool {
	for _, g := range skip {
		if g.Match(quant) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, g := range include {
		if g.Match(quant) {
			return true
		}
	}
	return false
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// sortRuns orders by (estimated_size_gb, model, engine, quant, benchmark)
// ascending, to maximise early progress and minimise disk-pressure swings.
func sortRuns(runs []ledger.PlannedRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		a, b := runs[i], runs[j]
		if a.EstimatedSizeGB != b.EstimatedSizeGB {
			return a.EstimatedSizeGB < b.EstimatedSizeGB
		}
		if a.ModelRef != b.ModelRef {
			return a.ModelRef < b.ModelRef
		}
		if a.EngineName != b.EngineName {
			return a.EngineName < b.EngineName
		}
		if a.Quant != b.Quant {
			return a.Quant < b.Quant
		}
		return a.BenchmarkName < b.BenchmarkName
	})
}
