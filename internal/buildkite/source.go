// Package buildkite exposes Buildkite pipelines as a build source. A pipeline slug
// plays the role of the build type and the build number is both the identifier and
// the display number.
package buildkite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/buildkite/go-buildkite/v4"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
)

const (
	stateRunning = "running"
	statePassed  = "passed"
	stateFailed  = "failed"
)

type Options struct {
	Organization string
	Token        string
	BaseURL      string
	PageSize     int
	Logger       *slog.Logger
}

type Source struct {
	client   *buildkite.Client
	org      string
	pageSize int
	logger   *slog.Logger

}

var _ ci.Source = (*Source)(nil)

func NewSource(options Options) (*Source, error) {
	org := strings.TrimSpace(options.Organization)
	if org == "" {
		return nil, errors.New("buildkite organization must be set")
	}
	token := strings.TrimSpace(options.Token)
	if token == "" {
		return nil, errors.New("buildkite API token must be set")
	}

	baseURL := strings.TrimSpace(options.BaseURL)
	if baseURL == "" {
		baseURL = contracts.DefaultBuildkiteURL
	}
	client, err := buildkite.NewOpts(
		buildkite.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"),
		buildkite.WithTokenAuth(token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create buildkite client: %w", err)
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = contracts.DefaultBuildkitePage
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Source{
		client:    client,
		org:       org,
		pageSize:  pageSize,
		logger:    logger,
	}, nil
}

func (s *Source) ListBuilds(ctx context.Context, buildTypeID string) ([]ci.Build, error) {
	return s.listBuilds(ctx, buildTypeID, nil)
}

func (s *Source) RunningBuilds(ctx context.Context, buildTypeID string) ([]ci.Build, error) {
	return s.listBuilds(ctx, buildTypeID, []string{stateRunning})
}

func (s *Source) LatestSuccessfulBuild(ctx context.Context, buildTypeID string) (*ci.Build, error) {
	builds, err := s.ListBuilds(ctx, buildTypeID)
	if err != nil {
		return nil, err
	}
	return ci.LatestWithStatus(builds, ci.StatusSuccess), nil
}

// ChangeDetailsForBuild reports the build's commit as its single change. Build
// numbers repeat across pipelines, so the build is addressed by its pipeline slug
// (BuildTypeID) and number together.
func (s *Source) ChangeDetailsForBuild(ctx context.Context, listed ci.Build) ([]ci.ChangeDetail, error) {
	pipeline := strings.TrimSpace(listed.BuildTypeID)
	number := strings.TrimSpace(listed.ID)
	if pipeline == "" || number == "" {
		return nil, fmt.Errorf("buildkite build %q has no pipeline or number", listed.ID)
	}

	build, _, err := s.client.Builds.Get(ctx, s.org, pipeline, number, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get buildkite build %s/%s#%s: %w", s.org, pipeline, number, err)
	}

	changes := make([]ci.ChangeDetail, 0, 1)
	commit := strings.TrimSpace(build.Commit)
	if commit == "" || strings.EqualFold(commit, "HEAD") {
		return changes, nil
	}
	return append(changes, ci.ChangeDetail{
		ID:       commit,
		Version:  commit,
		Username: authorOf(build),
		Comment:  strings.TrimRight(build.Message, "\r\n"),
		WebURL:   build.WebURL,
	}), nil
}

// IssuesForBuild is always empty; Buildkite has no issue tracker links.
func (s *Source) IssuesForBuild(_ context.Context, _ ci.Build) ([]ci.Issue, error) {
	return []ci.Issue{}, nil
}

// ResolveBuildTypeByProjectAndName treats the project as an organization slug and
// matches the pipeline by name or slug.
func (s *Source) ResolveBuildTypeByProjectAndName(ctx context.Context, project string, name string) (*ci.BuildType, error) {
	org := strings.TrimSpace(project)
	if org == "" {
		org = s.org
	}
	wanted := strings.TrimSpace(name)
	if wanted == "" {
		return nil, errors.New("buildkite pipeline name must be set")
	}

	options := &buildkite.PipelineListOptions{ListOptions: buildkite.ListOptions{PerPage: s.pageSize}}
	for page := 1; ; page++ {
		options.Page = page
		pipelines, _, err := s.client.Pipelines.List(ctx, org, options)
		if err != nil {
			return nil, fmt.Errorf("failed to list buildkite pipelines for %s: %w", org, err)
		}

		for _, pipeline := range pipelines {
			if strings.EqualFold(pipeline.Name, wanted) || strings.EqualFold(pipeline.Slug, wanted) {
				s.logger.Debug("resolved buildkite pipeline", "org", org, "name", wanted, "slug", pipeline.Slug)
				return &ci.BuildType{
					ID:          pipeline.Slug,
					Name:        pipeline.Name,
					ProjectName: org,
					ProjectID:   org,
					WebURL:      pipeline.WebURL,
				}, nil
			}
		}

		if len(pipelines) < s.pageSize {
			return nil, nil
		}
	}
}

func (s *Source) listBuilds(ctx context.Context, pipeline string, states []string) ([]ci.Build, error) {
	slug := strings.TrimSpace(pipeline)
	if slug == "" {
		return nil, errors.New("buildkite pipeline slug must be set")
	}

	options := &buildkite.BuildsListOptions{
		State:       states,
		ListOptions: buildkite.ListOptions{PerPage: s.pageSize},
	}

	builds := make([]ci.Build, 0)
	for page := 1; ; page++ {
		options.Page = page
		raw, _, err := s.client.Builds.ListByPipeline(ctx, s.org, slug, options)
		if err != nil {
			return nil, fmt.Errorf("failed to list buildkite builds for %s/%s: %w", s.org, slug, err)
		}

		for _, build := range raw {
			builds = append(builds, toBuild(slug, build))
		}
		if len(raw) < s.pageSize {
			break
		}
	}

	s.logger.Debug("listed buildkite builds", "org", s.org, "pipeline", slug, "count", len(builds))
	return builds, nil
}

func toBuild(pipeline string, build buildkite.Build) ci.Build {
	number := strconv.Itoa(build.Number)
	return ci.Build{
		ID:          number,
		Number:      number,
		Status:      normalizeState(build.State),
		BuildTypeID: pipeline,
		WebURL:      build.WebURL,
	}
}

func normalizeState(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case statePassed:
		return ci.StatusSuccess
	case stateFailed:
		return "FAILURE"
	default:
		return strings.ToUpper(strings.TrimSpace(state))
	}
}

func authorOf(build buildkite.Build) string {
	if build.Author.Username != "" {
		return build.Author.Username
	}
	if build.Author.Name != "" {
		return build.Author.Name
	}
	return build.Creator.Name
}
