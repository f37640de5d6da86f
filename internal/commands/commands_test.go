package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/config"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

type stubSource struct {
	builds     map[string][]ci.Build
	running    map[string][]ci.Build
	changes    map[string][]ci.ChangeDetail
	issues     map[string][]ci.Issue
	buildTypes []ci.BuildType
	listErr    error
	changeErr  error

	listed       []string
	changeLookup []string
}

func (s *stubSource) ListBuilds(_ context.Context, buildTypeID string) ([]ci.Build, error) {
	s.listed = append(s.listed, buildTypeID)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.builds[buildTypeID], nil
}

func (s *stubSource) ChangeDetailsForBuild(_ context.Context, build ci.Build) ([]ci.ChangeDetail, error) {
	s.changeLookup = append(s.changeLookup, build.ID)
	if s.changeErr != nil {
		return nil, s.changeErr
	}
	return s.changes[build.ID], nil
}

func (s *stubSource) IssuesForBuild(_ context.Context, build ci.Build) ([]ci.Issue, error) {
	return s.issues[build.ID], nil
}

func (s *stubSource) ResolveBuildTypeByProjectAndName(_ context.Context, project string, name string) (*ci.BuildType, error) {
	for _, buildType := range s.buildTypes {
		if strings.EqualFold(buildType.ProjectName, project) && strings.EqualFold(buildType.Name, name) {
			found := buildType
			return &found, nil
		}
	}
	return nil, nil
}

func (s *stubSource) LatestSuccessfulBuild(_ context.Context, buildTypeID string) (*ci.Build, error) {
	return ci.LatestWithStatus(s.builds[buildTypeID], ci.StatusSuccess), nil
}

func (s *stubSource) RunningBuilds(_ context.Context, buildTypeID string) ([]ci.Build, error) {
	return s.running[buildTypeID], nil
}

type stubResolver struct {
	name    string
	prefix  string
	derive  []ci.Issue
	queried [][]ci.Issue
}

func (r *stubResolver) Name() string { return r.name }

func (r *stubResolver) GetDetails(_ context.Context, issues []ci.Issue) ([]resolver.ExternalIssueDetails, error) {
	r.queried = append(r.queried, issues)
	details := make([]resolver.ExternalIssueDetails, 0)
	for _, issue := range issues {
		if strings.HasPrefix(issue.ID, r.prefix) {
			details = append(details, resolver.ExternalIssueDetails{Source: r.name, ID: issue.ID, Summary: "summary of " + issue.ID})
		}
	}
	return details, nil
}

func (r *stubResolver) GetIssues(_ context.Context, _ []ci.ChangeDetail) ([]ci.Issue, error) {
	return r.derive, nil
}

func scenarioSource() *stubSource {
	return &stubSource{
		builds: map[string][]ci.Build{
			"App_Build": {
				{ID: "102", Number: "1.0.3", Status: "SUCCESS", BuildTypeID: "App_Build"},
				{ID: "100", Number: "1.0.1", Status: "SUCCESS", BuildTypeID: "App_Build"},
				{ID: "101", Number: "1.0.2", Status: "FAILURE", BuildTypeID: "App_Build"},
			},
			"App_Deploy": {
				{ID: "200", Number: "1.0.1", Status: "SUCCESS", BuildTypeID: "App_Deploy"},
				{ID: "201", Number: "1.0.2", Status: "SUCCESS", BuildTypeID: "App_Deploy"},
			},
		},
		running: map[string][]ci.Build{
			"App_Build": {
				{ID: "104", Number: "1.0.5", Status: "SUCCESS"},
				{ID: "103", Number: "1.0.4", Status: "SUCCESS"},
			},
		},
		changes: map[string][]ci.ChangeDetail{
			"100": {{ID: "c1", Version: "aaa", Comment: "PROJ-1 first"}},
			"101": {{ID: "c2", Version: "bbb", Comment: "PROJ-2 second"}},
			"102": {{ID: "c3", Version: "ccc", Comment: "third"}},
			"201": {{ID: "c9", Version: "zzz", Comment: "deploy change"}},
		},
		issues: map[string][]ci.Issue{
			"100": {{ID: "PROJ-1"}},
			"101": {{ID: "PROJ-2"}, {ID: "#7"}},
			"102": {{ID: "PROJ-1"}},
		},
		buildTypes: []ci.BuildType{{ID: "App_Build", Name: "Build", ProjectName: "App"}},
	}
}

func testEnvironment() config.Environment {
	return config.Environment{CIProvider: "teamcity"}
}

func baseOptions(source ci.Source, chain *resolver.Chain) AggregateOptions {
	return AggregateOptions{
		Target:   TargetOptions{BuildType: "App_Build"},
		Settings: SettingsOptions{Environment: testEnvironment()},
		Source:   source,
		Chain:    chain,
		Now:      func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) },
		NewRunID: func() string { return "run-1" },
	}
}

func changeIDs(changes []ci.ChangeDetail) []string {
	ids := make([]string, 0, len(changes))
	for _, change := range changes {
		ids = append(ids, change.ID)
	}
	return ids
}

func TestRunAggregateDeltaSpansNumberRangeAndWritesReport(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	jira := &stubResolver{name: "jira", prefix: "PROJ-"}
	gh := &stubResolver{name: "github", prefix: "#"}
	options := baseOptions(scenarioSource(), resolver.NewChain(jira, gh))
	options.From = "1.0.1"
	options.To = "1.0.3"

	result, err := RunAggregateDelta(context.Background(), workDir, options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	m := result.Manifest
	if m == nil {
		t.Fatalf("expected manifest")
	}
	if m.RunID != "run-1" || m.BuildConfiguration != "App_Build" || m.ReferenceBuildConfiguration != "" {
		t.Fatalf("unexpected manifest metadata: %#v", m)
	}
	if m.FromVersion != "1.0.1" || m.ToVersion != "1.0.3" {
		t.Fatalf("unexpected markers: %s..%s", m.FromVersion, m.ToVersion)
	}
	if got := changeIDs(m.ChangeDetails); !reflect.DeepEqual(got, []string{"c1", "c2", "c3"}) {
		t.Fatalf("unexpected changes: %v", got)
	}
	if len(result.Builds) != 3 {
		t.Fatalf("expected three builds in range, got %d", len(result.Builds))
	}

	wantDistinct := []ci.Issue{{ID: "PROJ-1"}, {ID: "PROJ-2"}, {ID: "#7"}}
	if !reflect.DeepEqual(jira.queried, [][]ci.Issue{wantDistinct}) || !reflect.DeepEqual(gh.queried, [][]ci.Issue{wantDistinct}) {
		t.Fatalf("expected each resolver to get the distinct issues once: jira=%v github=%v", jira.queried, gh.queried)
	}
	gotDetails := make([]string, 0, len(m.IssueDetails))
	for _, detail := range m.IssueDetails {
		gotDetails = append(gotDetails, detail.Source+":"+detail.ID)
	}
	if !reflect.DeepEqual(gotDetails, []string{"jira:PROJ-1", "jira:PROJ-2", "github:#7"}) {
		t.Fatalf("unexpected issue details: %v", gotDetails)
	}

	if result.ReportPath != "output.html" {
		t.Fatalf("unexpected report path: %q", result.ReportPath)
	}
	raw, err := os.ReadFile(filepath.Join(workDir, "output.html"))
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !strings.Contains(string(raw), "summary of PROJ-2") {
		t.Fatalf("expected report to list issue details")
	}
}

func TestRunAggregateDeltaSingleBuildRange(t *testing.T) {
	t.Parallel()

	source := scenarioSource()
	options := baseOptions(source, resolver.NewChain())
	options.From = "1.0.2"
	options.To = "1.0.2"
	options.Settings.Flags.ReportPath = new(string)

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if got := changeIDs(result.Manifest.ChangeDetails); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Fatalf("unexpected changes: %v", got)
	}
	if !reflect.DeepEqual(source.changeLookup, []string{"101"}) {
		t.Fatalf("expected only build 101 to be looked up, got %v", source.changeLookup)
	}
	if result.ReportPath != "" {
		t.Fatalf("expected report to be disabled, got %q", result.ReportPath)
	}
}

func TestRunAggregateDeltaDefaultsAnchors(t *testing.T) {
	t.Parallel()

	options := baseOptions(scenarioSource(), resolver.NewChain())
	options.Settings.Flags.ReportPath = new(string)

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if result.Manifest.FromVersion != "1.0.3" {
		t.Fatalf("expected from to default to the latest successful build number, got %q", result.Manifest.FromVersion)
	}
	if result.Manifest.ToVersion != "1.0.5" {
		t.Fatalf("expected to to default to the newest running build number, got %q", result.Manifest.ToVersion)
	}
	if got := changeIDs(result.Manifest.ChangeDetails); !reflect.DeepEqual(got, []string{"c3"}) {
		t.Fatalf("expected open-ended range from 102, got %v", got)
	}
}

func TestRunAggregateDeltaAnchorsByIdentifier(t *testing.T) {
	t.Parallel()

	options := baseOptions(scenarioSource(), resolver.NewChain())
	options.Settings.Flags.RangeBy = "id"
	options.Settings.Flags.ReportPath = new(string)
	options.To = "102"

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if result.Manifest.FromVersion != "102" {
		t.Fatalf("expected identifier anchor, got %q", result.Manifest.FromVersion)
	}
}

func TestRunAggregateDeltaMissingAnchorsAreConfigurationErrors(t *testing.T) {
	t.Parallel()

	source := scenarioSource()
	source.builds["App_Build"] = []ci.Build{{ID: "100", Number: "1.0.1", Status: "FAILURE"}}
	options := baseOptions(source, resolver.NewChain())
	options.To = "1.0.1"

	_, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if !errors.Is(err, ErrNoSuccessfulBuild) || !IsConfigurationError(err) {
		t.Fatalf("expected no successful build configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "could not find latest build for build type App_Build") {
		t.Fatalf("unexpected message: %v", err)
	}

	source = scenarioSource()
	source.running = nil
	options = baseOptions(source, resolver.NewChain())
	options.From = "1.0.1"

	_, err = RunAggregateDelta(context.Background(), t.TempDir(), options)
	if !errors.Is(err, ErrNoRunningBuild) || !IsConfigurationError(err) {
		t.Fatalf("expected no running build configuration error, got %v", err)
	}
}

func TestRunAggregateDeltaResolvesBuildTypeByProjectAndName(t *testing.T) {
	t.Parallel()

	options := baseOptions(scenarioSource(), resolver.NewChain())
	options.Target = TargetOptions{Project: "app", BuildName: "build"}
	options.From = "1.0.1"
	options.To = "1.0.1"
	options.Settings.Flags.ReportPath = new(string)

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if result.Manifest.BuildConfiguration != "App_Build" {
		t.Fatalf("unexpected build configuration: %q", result.Manifest.BuildConfiguration)
	}

	options.Target = TargetOptions{Project: "App", BuildName: "Nope"}
	_, err = RunAggregateDelta(context.Background(), t.TempDir(), options)
	if !errors.Is(err, ErrBuildTypeUnresolved) || !IsConfigurationError(err) {
		t.Fatalf("expected unresolved build type error, got %v", err)
	}

	options.Target = TargetOptions{Project: "App"}
	_, err = RunAggregateDelta(context.Background(), t.TempDir(), options)
	if !errors.Is(err, ErrMissingBuildType) {
		t.Fatalf("expected missing build type error, got %v", err)
	}
}

func TestRunAggregateDeltaScansReferenceBuildList(t *testing.T) {
	t.Parallel()

	source := scenarioSource()
	options := baseOptions(source, resolver.NewChain())
	options.ReferenceBuild = "App_Deploy"
	options.To = "1.0.2"
	options.Settings.Flags.ReportPath = new(string)

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !reflect.DeepEqual(source.listed, []string{"App_Deploy"}) {
		t.Fatalf("expected the reference build list to be scanned, got %v", source.listed)
	}
	// The anchor 1.0.3 comes from App_Build and never matches in App_Deploy.
	if len(result.Manifest.ChangeDetails) != 0 {
		t.Fatalf("expected empty range, got %v", changeIDs(result.Manifest.ChangeDetails))
	}
	if result.Manifest.ReferenceBuildConfiguration != "App_Deploy" {
		t.Fatalf("unexpected reference build configuration: %q", result.Manifest.ReferenceBuildConfiguration)
	}

	options.From = "1.0.1"
	source.listed = nil
	result, err = RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if got := changeIDs(result.Manifest.ChangeDetails); !reflect.DeepEqual(got, []string{"c9"}) {
		t.Fatalf("unexpected reference changes: %v", got)
	}
}

func TestRunAggregateDeltaDerivesIssuesFromChanges(t *testing.T) {
	t.Parallel()

	deriving := &stubResolver{name: "jira", prefix: "PROJ-", derive: []ci.Issue{{ID: "PROJ-9"}, {ID: "PROJ-1"}}}
	options := baseOptions(scenarioSource(), resolver.NewChain(deriving))
	options.From = "1.0.1"
	options.To = "1.0.1"
	options.Settings.Flags.ReportPath = new(string)

	result, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(result.Manifest.IssueDetails) != 1 {
		t.Fatalf("expected derived issues to be ignored without the flag, got %#v", result.Manifest.IssueDetails)
	}

	options.DeriveIssues = true
	result, err = RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	got := make([]string, 0)
	for _, detail := range result.Manifest.IssueDetails {
		got = append(got, detail.ID)
	}
	if !reflect.DeepEqual(got, []string{"PROJ-1", "PROJ-9"}) {
		t.Fatalf("unexpected issue details: %v", got)
	}
}

func TestRunAggregateDeltaRemoteFailuresAreFatal(t *testing.T) {
	t.Parallel()

	source := scenarioSource()
	source.changeErr = errors.New("connection reset")
	options := baseOptions(source, resolver.NewChain())
	options.From = "1.0.1"
	options.To = "1.0.3"

	_, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if err == nil || IsConfigurationError(err) {
		t.Fatalf("expected fatal non-configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected cause in message, got %v", err)
	}
	if !reflect.DeepEqual(source.changeLookup, []string{"100"}) {
		t.Fatalf("expected the range walk to abort at the first failure, got %v", source.changeLookup)
	}
}

func TestRunAggregateDeltaRequiresServerWithoutInjectedSource(t *testing.T) {
	t.Parallel()

	options := baseOptions(nil, resolver.NewChain())

	_, err := RunAggregateDelta(context.Background(), t.TempDir(), options)
	if !errors.Is(err, ErrMissingServer) || !IsConfigurationError(err) {
		t.Fatalf("expected missing server configuration error, got %v", err)
	}
}

func TestRunAggregateDeltaReadsConfigFile(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	content := `{"config_version":"1","ci":{"range_by":"id"},"report":{"path":"reports/changes.html","zero_changes_comment":"Nothing changed."}}`
	if err := os.WriteFile(filepath.Join(workDir, ".build-changes.json"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	options := baseOptions(scenarioSource(), resolver.NewChain())
	options.From = "101"
	options.To = "100"

	result, err := RunAggregateDelta(context.Background(), workDir, options)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if len(result.Manifest.ChangeDetails) != 0 {
		t.Fatalf("expected inverted range to be empty, got %v", changeIDs(result.Manifest.ChangeDetails))
	}
	if result.ZeroChangesComment != "Nothing changed." || result.ReportPath != "reports/changes.html" {
		t.Fatalf("unexpected report settings: %#v", result)
	}
	raw, err := os.ReadFile(filepath.Join(workDir, "reports", "changes.html"))
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !strings.Contains(string(raw), "Nothing changed.") {
		t.Fatalf("expected zero-changes comment in report")
	}
}

func TestRunAggregateDeltaRejectsInvalidConfigFile(t *testing.T) {
	t.Parallel()

	workDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(workDir, "custom.json"), []byte(`{"config_version":"1","bogus":true}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	options := baseOptions(scenarioSource(), resolver.NewChain())
	options.Settings.ConfigPath = "custom.json"

	_, err := RunAggregateDelta(context.Background(), workDir, options)
	if !config.IsErrorCode(err, config.ErrorCodeParseFailed) || !IsConfigurationError(err) {
		t.Fatalf("expected config parse error, got %v", err)
	}

	options.Settings.ConfigPath = "missing.json"
	_, err = RunAggregateDelta(context.Background(), workDir, options)
	if !config.IsErrorCode(err, config.ErrorCodeReadFailed) {
		t.Fatalf("expected explicit missing config to fail, got %v", err)
	}
}

func TestRunListBuildsSortsByIdentifier(t *testing.T) {
	t.Parallel()

	source := scenarioSource()
	result, err := RunListBuilds(context.Background(), t.TempDir(), ListBuildsOptions{
		Target:   TargetOptions{BuildType: "App_Build"},
		Settings: SettingsOptions{Environment: testEnvironment()},
		Source:   source,
	})
	if err != nil {
		t.Fatalf("list builds failed: %v", err)
	}

	ids := make([]string, 0, len(result.Builds))
	for _, build := range result.Builds {
		ids = append(ids, build.ID)
	}
	if !reflect.DeepEqual(ids, []string{"100", "101", "102"}) {
		t.Fatalf("unexpected build order: %v", ids)
	}

	result, err = RunListBuilds(context.Background(), t.TempDir(), ListBuildsOptions{
		Target:   TargetOptions{BuildType: "App_Build"},
		Running:  true,
		Settings: SettingsOptions{Environment: testEnvironment()},
		Source:   source,
	})
	if err != nil {
		t.Fatalf("list running builds failed: %v", err)
	}
	if len(result.Builds) != 2 || result.Builds[0].ID != "103" {
		t.Fatalf("unexpected running builds: %#v", result.Builds)
	}
}

func TestTargetErrorFormatting(t *testing.T) {
	t.Parallel()

	err := &TargetError{Code: TargetErrorCodeNoRunningBuild, Message: "no running build", Hint: "pass --to explicitly"}
	if got := err.Error(); got != "failed to resolve build target: no running build (pass --to explicitly)" {
		t.Fatalf("unexpected message: %q", got)
	}
	if errors.Is(err, ErrNoSuccessfulBuild) {
		t.Fatalf("did not expect codes to cross-match")
	}
	if IsConfigurationError(errors.New("plain")) || IsConfigurationError(nil) {
		t.Fatalf("plain errors are not configuration errors")
	}
}
