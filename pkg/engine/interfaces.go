package engine

import (
	"context"

	"github.com/openfroyo/detyped/pkg/policy"
)

// PolicyEvaluator gates invocations before they reach the model.
// *policy.Engine implements it.
type PolicyEvaluator interface {
	// EvaluateInvocation returns a policy fault when the input is denied.
	EvaluateInvocation(ctx context.Context, input *policy.Input) (*policy.Result, error)
}

// PolicyFunc adapts a function to PolicyEvaluator.
type PolicyFunc func(ctx context.Context, input *policy.Input) (*policy.Result, error)

// EvaluateInvocation calls f.
func (f PolicyFunc) EvaluateInvocation(ctx context.Context, input *policy.Input) (*policy.Result, error) {
	return f(ctx, input)
}

// allowAll is used when no evaluator is configured.
var allowAll = PolicyFunc(func(ctx context.Context, input *policy.Input) (*policy.Result, error) {
	return &policy.Result{Allowed: true}, nil
})
