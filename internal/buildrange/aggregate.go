package buildrange

import (
	"context"
	"fmt"

	"github.com/pweiskircher/build-changes/internal/ci"
)

// Retriever looks up the items one build contributes to a range.
type Retriever[T any] func(ctx context.Context, build ci.Build) ([]T, error)

// Aggregate walks builds in identifier order and concatenates retrieve's output for
// every build in the inclusive window [from, to].
//
// Capturing starts at the first build matching from and stops right after the
// build matching to. An unmatched from yields nothing; an unmatched to runs to the
// end of the sequence. When to matches before from does, the scan stops before
// capturing anything and the result is empty.
func Aggregate[T any](ctx context.Context, builds []ci.Build, from string, to string, comparator Comparator, retrieve Retriever[T]) ([]T, error) {
	if retrieve == nil {
		return nil, fmt.Errorf("build range retriever is nil")
	}

	results := make([]T, 0)
	capturing := false
	for _, build := range ci.SortBuilds(builds) {
		if comparator.Matches(build, from) {
			capturing = true
		}

		if capturing {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			items, err := retrieve(ctx, build)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve build %s: %w", build.ID, err)
			}
			results = append(results, items...)
		}

		if comparator.Matches(build, to) {
			break
		}
	}

	return results, nil
}
