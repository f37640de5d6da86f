package ci

import "context"

// Source is the read-only capability a CI server exposes to the aggregation pipeline.
// ListBuilds makes no ordering promise; callers sort with SortBuilds. The per-build
// lookups take the Build as listed, so a source may address it by BuildTypeID as
// well as ID.
type Source interface {
	ListBuilds(ctx context.Context, buildTypeID string) ([]Build, error)
	ChangeDetailsForBuild(ctx context.Context, build Build) ([]ChangeDetail, error)
	IssuesForBuild(ctx context.Context, build Build) ([]Issue, error)
	ResolveBuildTypeByProjectAndName(ctx context.Context, project string, name string) (*BuildType, error)
	LatestSuccessfulBuild(ctx context.Context, buildTypeID string) (*Build, error)
	RunningBuilds(ctx context.Context, buildTypeID string) ([]Build, error)
}
