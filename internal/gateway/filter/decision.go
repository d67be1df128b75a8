package filter

import "context"

type decisionKey struct{}

type decision struct {
	outcome Outcome
}

// TrackDecision returns a context in which the filter records its outcome,
// so that middleware wrapping the filter can read it back with DecisionFrom.
func TrackDecision(ctx context.Context) context.Context {
	return context.WithValue(ctx, decisionKey{}, &decision{})
}

// DecisionFrom returns the recorded outcome, or "" when the filter did not
// run or the context was not prepared with TrackDecision.
func DecisionFrom(ctx context.Context) Outcome {
	if d, ok := ctx.Value(decisionKey{}).(*decision); ok {
		return d.outcome
	}
	return ""
}

func setDecision(ctx context.Context, o Outcome) {
	if d, ok := ctx.Value(decisionKey{}).(*decision); ok {
		d.outcome = o
	}
}
