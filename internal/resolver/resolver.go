// Package resolver enriches issue references with details from external issue
// trackers and derives issue references from change data.
package resolver

import (
	"context"
	"fmt"

	"github.com/pweiskircher/build-changes/internal/ci"
)

// IssueResolver is implemented once per issue tracker. A resolver returns nothing
// for issues it does not recognize.
type IssueResolver interface {
	Name() string
	GetDetails(ctx context.Context, issues []ci.Issue) ([]ExternalIssueDetails, error)
	GetIssues(ctx context.Context, changes []ci.ChangeDetail) ([]ci.Issue, error)
}

// ExternalIssueDetails is what a tracker knows about one issue.
type ExternalIssueDetails struct {
	Source   string   `json:"source" yaml:"source"`
	ID       string   `json:"id" yaml:"id"`
	Summary  string   `json:"summary" yaml:"summary"`
	Status   string   `json:"status,omitempty" yaml:"status,omitempty"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Assignee string   `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Labels   []string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Created  string   `json:"created,omitempty" yaml:"created,omitempty"`
}

// Chain fans requests out to every registered resolver and concatenates the
// answers in registration order. There is no claiming between resolvers: two
// resolvers recognizing the same issue both contribute a record.
type Chain struct {
	resolvers []IssueResolver
}

func NewChain(resolvers ...IssueResolver) *Chain {
	registered := make([]IssueResolver, 0, len(resolvers))
	for _, r := range resolvers {
		if r != nil {
			registered = append(registered, r)
		}
	}
	return &Chain{resolvers: registered}
}

// Names returns the registered resolver names in registration order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.resolvers))
	for _, r := range c.resolvers {
		names = append(names, r.Name())
	}
	return names
}

// GetExternalIssueDetails deduplicates issues by ID and asks every resolver for
// details of the distinct set.
func (c *Chain) GetExternalIssueDetails(ctx context.Context, issues []ci.Issue) ([]ExternalIssueDetails, error) {
	details := make([]ExternalIssueDetails, 0)
	if c == nil || len(issues) == 0 {
		return details, nil
	}

	distinct := ci.DistinctIssues(issues)
	for _, r := range c.resolvers {
		resolved, err := r.GetDetails(ctx, distinct)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve issue details via %s: %w", r.Name(), err)
		}
		details = append(details, resolved...)
	}
	return details, nil
}

// GetAssociatedIssues asks every resolver to derive issue references from changes.
// The result is not deduplicated.
func (c *Chain) GetAssociatedIssues(ctx context.Context, changes []ci.ChangeDetail) ([]ci.Issue, error) {
	issues := make([]ci.Issue, 0)
	if c == nil || len(changes) == 0 {
		return issues, nil
	}

	for _, r := range c.resolvers {
		derived, err := r.GetIssues(ctx, changes)
		if err != nil {
			return nil, fmt.Errorf("failed to derive issues via %s: %w", r.Name(), err)
		}
		issues = append(issues, derived...)
	}
	return issues, nil
}
