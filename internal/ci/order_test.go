package ci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareIDsOrdersDecimalIdentifiersByMagnitude(t *testing.T) {
	t.Parallel()

	assert.Negative(t, CompareIDs("99", "100"))
	assert.Positive(t, CompareIDs("101", "100"))
	assert.Zero(t, CompareIDs("0100", "100"))
	assert.Negative(t, CompareIDs("abc", "abd"))
	assert.Negative(t, CompareIDs("100", "bt-1"))
}

func TestSortBuildsReturnsSortedCopy(t *testing.T) {
	t.Parallel()

	input := []Build{{ID: "102"}, {ID: "99"}, {ID: "100"}}
	sorted := SortBuilds(input)

	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"99", "100", "102"}, []string{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	assert.Equal(t, "102", input[0].ID, "input must not be reordered")
}

func TestLatestWithStatusPicksHighestMatchingIdentifier(t *testing.T) {
	t.Parallel()

	builds := []Build{
		{ID: "100", Number: "1.0.0", Status: "SUCCESS"},
		{ID: "103", Number: "1.0.3", Status: "FAILURE"},
		{ID: "102", Number: "1.0.2", Status: "success"},
		{ID: "101", Number: "1.0.1", Status: "SUCCESS"},
	}

	latest := LatestWithStatus(builds, StatusSuccess)
	require.NotNil(t, latest)
	assert.Equal(t, "102", latest.ID)

	assert.Nil(t, LatestWithStatus(builds, "UNKNOWN"))
}

func TestDistinctIssuesKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	issues := []Issue{
		{ID: "A-1", URL: "first"},
		{ID: "B-2"},
		{ID: "A-1", URL: "second"},
	}

	distinct := DistinctIssues(issues)
	require.Len(t, distinct, 2)
	assert.Equal(t, Issue{ID: "A-1", URL: "first"}, distinct[0])
	assert.Equal(t, "B-2", distinct[1].ID)
	assert.Nil(t, DistinctIssues(nil))
}
