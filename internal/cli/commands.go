package cli

import (
	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pweiskircher/build-changes/internal/commands"
	"github.com/pweiskircher/build-changes/internal/config"
	"github.com/pweiskircher/build-changes/internal/contracts"
)

func newAggregateDeltaCommand(app AppContext, state *executionState) *cobra.Command {
	var (
		options    commands.AggregateOptions
		reportPath string
	)

	cmd := &cobra.Command{
		Use:     string(contracts.CommandAggregateDelta),
		Aliases: contracts.CommandAliases[contracts.CommandAggregateDelta],
		Short:   "Aggregate changes and issues between two builds",
		Long: heredoc.Doc(`
			Walk the builds of a build type in identifier order and collect the
			changes and issues of every build from --from to --to, both included.

			Without --from the range starts at the latest successful build; without
			--to it ends at the newest running build. Markers are build numbers, or
			build identifiers with --range-by id. A marker that matches no build is
			not an error: an unmatched --from yields an empty range and an unmatched
			--to runs to the newest build.
		`),
		Example: heredoc.Doc(`
			# Changes between two build numbers
			$ build-changes aggregate-delta --build-type App_Build --from 1.0.1 --to 1.0.3

			# Resolve the build type by name and compare with what is running now
			$ build-changes aggregate-delta --project App --build-name Build

			# Scan a deployment pipeline's builds using anchors from the build type
			$ build-changes aggregate-delta --build-type App_Build --reference-build App_Deploy --to 1.0.3

			# Buildkite, JSON output, issues derived from commit messages
			$ build-changes aggregate-delta --ci buildkite --buildkite-org acme --build-type app --derive-issues --json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("report") {
				options.Settings.Flags.ReportPath = &reportPath
			}
			options.Settings.Environment = app.Environment
			options.Source = app.Source
			options.Chain = app.Chain
			options.Now = app.Now
			options.NewRunID = app.NewRunID
			options.Logger = state.logger(app)

			start := app.Now()
			report, err := commands.RunAggregateDelta(cmd.Context(), app.WorkDir, options)
			return finish(app, state, report, app.Now().Sub(start), err)
		},
	}

	flags := cmd.Flags()
	addTargetFlags(flags, &options.Target)
	flags.StringVar(&options.ReferenceBuild, "reference-build", "", "build type whose builds are scanned; anchors still come from --build-type")
	flags.StringVar(&options.From, "from", "", "first build of the range (default: latest successful build)")
	flags.StringVar(&options.To, "to", "", "last build of the range (default: newest running build)")
	flags.BoolVar(&options.DeriveIssues, "derive-issues", false, "also extract issue references from change comments")
	addSettingsFlags(flags, &options.Settings)

	runtime := &options.Settings.Flags
	flags.StringVar(&runtime.RangeBy, "range-by", "", "match markers by build number or id (default number)")
	flags.StringVar(&runtime.JiraBaseURL, "jira-url", "", "Jira site URL (or "+config.EnvJiraBaseURL+")")
	flags.StringVar(&runtime.JiraEmail, "jira-email", "", "Jira account email (or "+config.EnvJiraEmail+")")
	flags.StringSliceVar(&runtime.JiraProjectKeys, "jira-project", nil, "only resolve Jira keys of this project (repeatable)")
	flags.StringVar(&runtime.GitHubRepository, "github-repo", "", "GitHub repository owner/repo (or "+config.EnvGitHubRepository+")")
	flags.StringVar(&reportPath, "report", contracts.DefaultReportPath, "HTML report path under the working directory; empty disables the report")
	flags.StringVar(&runtime.ReportTemplate, "template", "", "HTML template replacing the built-in report layout")
	flags.StringVar(&runtime.ZeroChangesComment, "zero-changes-comment", "", "text shown instead of an empty change list")

	return cmd
}

func newBuildsCommand(app AppContext, state *executionState) *cobra.Command {
	var options commands.ListBuildsOptions

	cmd := &cobra.Command{
		Use:   string(contracts.CommandBuilds),
		Short: "List the builds of a build type in range order",
		Long: heredoc.Doc(`
			List the builds of a build type sorted by identifier, the order in which
			aggregate-delta matches range markers.
		`),
		Example: heredoc.Doc(`
			$ build-changes builds --build-type App_Build
			$ build-changes builds --project App --build-name Build --running --json
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Settings.Environment = app.Environment
			options.Source = app.Source
			options.Logger = state.logger(app)

			start := app.Now()
			report, err := commands.RunListBuilds(cmd.Context(), app.WorkDir, options)
			return finish(app, state, report, app.Now().Sub(start), err)
		},
	}

	flags := cmd.Flags()
	addTargetFlags(flags, &options.Target)
	flags.BoolVar(&options.Running, "running", false, "list running builds only")
	addSettingsFlags(flags, &options.Settings)

	return cmd
}

func addTargetFlags(flags *pflag.FlagSet, target *commands.TargetOptions) {
	flags.StringVar(&target.BuildType, "build-type", "", "build type identifier (TeamCity build type id or Buildkite pipeline slug)")
	flags.StringVar(&target.Project, "project", "", "project name used with --build-name to find the build type")
	flags.StringVar(&target.BuildName, "build-name", "", "build name used with --project to find the build type")
}

func addSettingsFlags(flags *pflag.FlagSet, settings *commands.SettingsOptions) {
	flags.StringVar(&settings.ConfigPath, "config", "", "config file (default "+contracts.ConfigFilePath+" when present)")
	flags.StringVar(&settings.Flags.CIProvider, "ci", "", "CI provider: teamcity or buildkite (or "+config.EnvBuildChangesCIKind+")")
	flags.StringVar(&settings.Flags.ServerURL, "server", "", "TeamCity server URL (or "+config.EnvTeamCityURL+")")
	flags.StringVar(&settings.Flags.BuildkiteOrg, "buildkite-org", "", "Buildkite organization slug (or "+config.EnvBuildkiteOrg+")")
}
