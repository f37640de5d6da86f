package contracts

import "time"

const (
	DefaultReportPath     = "output.html"
	DefaultCIProvider     = CIProviderTeamCity
	DefaultRangeBy        = "number"
	DefaultGitHubAPIURL   = "https://api.github.com"
	DefaultBuildkiteURL   = "https://api.buildkite.com/"
	DefaultBuildListCount = 10000
)

const (
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultJiraSearchPage = 50
	DefaultBuildkitePage  = 100
)

type CommandName string

const (
	CommandAggregateDelta CommandName = "aggregate-delta"
	CommandBuilds         CommandName = "builds"
)

// CommandAliases keeps the historical spelling of commands working.
var CommandAliases = map[CommandName][]string{
	CommandAggregateDelta: {"aggregatebuilddelta"},
}
