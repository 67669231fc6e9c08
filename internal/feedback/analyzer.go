package feedback

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/service"
)

// minErrorFrequency is the threshold above which a recurring rejection
// reason is considered material rather than noise.
const minErrorFrequency = 2

// Accuracy summarizes disposition counts for one provider or prompt version.
type Accuracy struct {
	Approvals  int
	Rejections int
	Rate       float64
}

// SystematicError is a rejection reason recurring across independent user
// corrections, indicating a fixable detection defect.
type SystematicError struct {
	Pattern    string
	Suggestion string
	Frequency  int
}

// Analyzer computes accuracy metrics from the feedback log. It is read-only
// and may run concurrently with writers; results are eventually consistent.
type Analyzer struct {
	store service.Storage
}

// NewAnalyzer creates an analyzer over the given store.
func NewAnalyzer(store service.Storage) *Analyzer {
	return &Analyzer{store: store}
}

// AccuracyByProvider returns acceptance metrics keyed by provider id.
// Records with no provider id (pattern-only detections) group under "none".
func (a *Analyzer) AccuracyByProvider(ctx context.Context) (map[string]Accuracy, error) {
	records, err := a.store.QueryFeedback(ctx, service.FeedbackFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	return accumulate(records, func(r model.FeedbackRecord) string {
		if r.ProviderID == "" {
			return "none"
		}
		return r.ProviderID
	}), nil
}

// AccuracyByPromptVersion returns acceptance metrics keyed by prompt
// version.
func (a *Analyzer) AccuracyByPromptVersion(ctx context.Context) (map[string]Accuracy, error) {
	records, err := a.store.QueryFeedback(ctx, service.FeedbackFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	return accumulate(records, func(r model.FeedbackRecord) string {
		if r.PromptVersion == "" {
			return "none"
		}
		return r.PromptVersion
	}), nil
}

// accumulate folds records into accuracy buckets. Confirm and edit both
// count as approvals; the user kept the detection either way.
func accumulate(records []model.FeedbackRecord, key func(model.FeedbackRecord) string) map[string]Accuracy {
	out := make(map[string]Accuracy)
	for _, r := range records {
		acc := out[key(r)]
		switch r.Action {
		case model.ActionConfirm, model.ActionEdit:
			acc.Approvals++
		case model.ActionReject:
			acc.Rejections++
		}
		out[key(r)] = acc
	}
	for k, acc := range out {
		total := acc.Approvals + acc.Rejections
		if total > 0 {
			acc.Rate = float64(acc.Approvals) / float64(total)
		}
		out[k] = acc
	}
	return out
}

// IdentifySystematicErrors groups rejection records by normalized correction
// reason, keeps groups above the minimum frequency, and returns them ranked
// by frequency descending.
func (a *Analyzer) IdentifySystematicErrors(ctx context.Context) ([]SystematicError, error) {
	records, err := a.store.QueryFeedback(ctx, service.FeedbackFilter{Action: model.ActionReject})
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}

	counts := make(map[string]int)
	for _, r := range records {
		if r.Corrections == nil || r.Corrections.Reason == "" {
			continue
		}
		counts[normalizeReason(r.Corrections.Reason)]++
	}

	var errors []SystematicError
	for reason, count := range counts {
		if count <= minErrorFrequency {
			continue
		}
		errors = append(errors, SystematicError{
			Pattern:    reason,
			Frequency:  count,
			Suggestion: suggestionFor(reason),
		})
	}

	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Frequency != errors[j].Frequency {
			return errors[i].Frequency > errors[j].Frequency
		}
		return errors[i].Pattern < errors[j].Pattern
	})

	return errors, nil
}

var reasonNoise = regexp.MustCompile(`[^a-z0-9\s]`)
var reasonSpaces = regexp.MustCompile(`\s+`)

// normalizeReason canonicalizes free-text rejection reasons so trivially
// different phrasings of the same complaint land in one group.
func normalizeReason(reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	reason = reasonNoise.ReplaceAllString(reason, "")
	reason = reasonSpaces.ReplaceAllString(reason, " ")
	return strings.TrimSpace(reason)
}

// suggestionFor maps a recurring complaint to a remediation hint.
func suggestionFor(reason string) string {
	switch {
	case strings.Contains(reason, "not a real estate"):
		return "tighten pattern indicator thresholds or add negative keywords for this communication type"
	case strings.Contains(reason, "wrong address"):
		return "review address extraction patterns against recent corrections"
	case strings.Contains(reason, "wrong price") || strings.Contains(reason, "wrong amount"):
		return "review monetary amount extraction against recent corrections"
	case strings.Contains(reason, "duplicate"):
		return "review thread propagation for over-linking"
	default:
		return "review recent rejections sharing this reason"
	}
}
