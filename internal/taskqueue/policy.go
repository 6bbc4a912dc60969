package taskqueue

import (
	"time"

	"github.com/Beep206/CyberVPN-sub003/pkg/config"
)

// RetryPolicy bounds how often a failing task is re-enqueued and how long to
// wait between attempts. Once the delay sequence is exhausted, the last
// value repeats.
type RetryPolicy struct {
	MaxRetries int
	Delays     []time.Duration
}

// DelayFor returns the backoff before re-enqueueing attempt number count
// (0-based).
func (p RetryPolicy) DelayFor(count int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if count >= len(p.Delays) {
		count = len(p.Delays) - 1
	}
	return p.Delays[count]
}

// PolicyRegistry is the static map from policy/queue name to retry policy.
// A task whose name resolves to no entry is not retried.
type PolicyRegistry struct {
	policies map[string]RetryPolicy
}

func NewPolicyRegistry(policies map[string]config.RetryPolicy) *PolicyRegistry {
	registry := &PolicyRegistry{policies: make(map[string]RetryPolicy, len(policies))}
	for name, p := range policies {
		registry.policies[name] = RetryPolicy{
			MaxRetries: p.MaxRetries,
			Delays:     p.Delays,
		}
	}
	return registry
}

func (r *PolicyRegistry) Lookup(task *Task) (RetryPolicy, bool) {
	policy, ok := r.policies[task.PolicyName()]
	return policy, ok
}
