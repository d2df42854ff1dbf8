package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys attached to profiles. Keep this set small: every distinct
// label value becomes its own profile series in Pyroscope.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelOperation  = "operation"
)

// maxLabelValueLen caps label values so a runaway route or operation
// name cannot blow up series cardinality.
const maxLabelValueLen = 128

// highCardinalityKeys are identifiers that must never become profile
// labels. sanitizeLabels drops them silently.
var highCardinalityKeys = map[string]struct{}{
	"user_id":     {},
	"request_id":  {},
	"proposal_id": {},
	"item_id":     {},
	"trace_id":    {},
	"span_id":     {},
	"session_id":  {},
}

// WithProfilingLabels runs fn with the given labels attached to the
// profiling context, so samples collected inside fn can be filtered by
// them in the Pyroscope UI. Labels are sanitized first; if nothing
// survives, fn runs unlabeled. pyroscope.TagWrapper is built on Go's
// pprof label API, so the labels also show up in plain pprof output.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels turns a label map into the flat key/value slice the
// pyroscope API wants. Keys are normalized to snake_case, values are
// truncated, and empty or high-cardinality entries are dropped. Keys
// are emitted in sorted order so output is deterministic.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" {
			continue
		}
		if _, banned := highCardinalityKeys[key]; banned {
			continue
		}
		if len(value) > maxLabelValueLen {
			value = value[:maxLabelValueLen]
		}
		if norm := normalizeLabelKey(key); norm != "" {
			pairs = append(pairs, norm, value)
		}
	}
	return pairs
}

// normalizeLabelKey lowercases the key, maps separators to
// underscores, and strips anything else that is not [a-z0-9_].
func normalizeLabelKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r == ' ', r == '-':
			return '_'
		default:
			return -1
		}
	}, key)
}
