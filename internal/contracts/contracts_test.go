package contracts

import "testing"

func TestCLIOutputContract(t *testing.T) {
	for _, mode := range []OutputMode{OutputModeHuman, OutputModeJSON, OutputModeYAML} {
		if OutputStreamContracts[mode].StdoutRule == "" || OutputStreamContracts[mode].StderrRule == "" {
			t.Fatalf("stream rules must be defined for %s", mode)
		}
	}

	if code := ResolveExitCode(false, false); code != ExitCodeSuccess {
		t.Fatalf("expected success exit code, got %d", code)
	}
	if code := ResolveExitCode(true, false); code != ExitCodeFatal {
		t.Fatalf("expected fatal exit code, got %d", code)
	}
	if code := ResolveExitCode(true, true); code != ExitCodeConfiguration {
		t.Fatalf("expected configuration exit code, got %d", code)
	}
	for _, code := range []ExitCode{ExitCodeSuccess, ExitCodeFatal, ExitCodeConfiguration} {
		if ExitCodeMeaning[code] == "" {
			t.Fatalf("exit code %d must have a documented meaning", code)
		}
	}

	env := CommandEnvelope{
		EnvelopeVersion: EnvelopeVersionV1,
		Command:         CommandMeta{Name: string(CommandAggregateDelta)},
	}
	if err := ValidateEnvelopeBasics(env); err != nil {
		t.Fatalf("expected envelope validation success, got %v", err)
	}
	if err := ValidateEnvelopeBasics(CommandEnvelope{EnvelopeVersion: "0", Command: CommandMeta{Name: "x"}}); err == nil {
		t.Fatalf("expected unsupported envelope version to fail")
	}
}

func TestReasonCodeWireValuesAreStable(t *testing.T) {
	codes := map[ReasonCode]string{
		ReasonCodeValidationFailed:      "validation_failed",
		ReasonCodeAuthFailed:            "auth_failed",
		ReasonCodeTransportError:        "transport_error",
		ReasonCodeNotFound:              "not_found",
		ReasonCodeBuildTypeUnresolved:   "build_type_unresolved",
		ReasonCodeRangeAnchorUnresolved: "range_anchor_unresolved",
	}
	for code, want := range codes {
		if string(code) != want {
			t.Fatalf("reason code %q changed, want %q", code, want)
		}
	}
}

func TestIssueKeyPatterns(t *testing.T) {
	if !JiraIssueKeyPattern.MatchString("PROJ-12") {
		t.Fatalf("expected PROJ-12 to be an issue key")
	}
	if JiraIssueKeyPattern.MatchString("proj-12") {
		t.Fatalf("did not expect lower-case key to match")
	}
	if !GitHubRepoPattern.MatchString("octo/hello-world") {
		t.Fatalf("expected owner/repo to match")
	}
}
