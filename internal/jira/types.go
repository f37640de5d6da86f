package jira

import "context"

// Adapter is the read-only slice of the Jira Cloud REST API the resolver needs.
type Adapter interface {
	SearchIssues(ctx context.Context, request SearchIssuesRequest) (SearchIssuesResponse, error)
}

// SearchIssuesRequest mirrors the search endpoint's body. ValidateQuery "warn"
// turns references to unknown keys into warnings instead of a 400.
type SearchIssuesRequest struct {
	JQL           string
	StartAt       int
	MaxResults    int
	Fields        []string
	ValidateQuery string
}

type SearchIssuesResponse struct {
	StartAt    int
	MaxResults int
	Total      int
	Issues     []Issue
	Warnings   []string
}

type Issue struct {
	ID     string
	Key    string
	Fields IssueFields
}

type IssueFields struct {
	Summary   string
	Labels    []string
	Assignee  *AccountRef
	Status    *NamedRef
	IssueType *NamedRef
	CreatedAt string
}

type AccountRef struct {
	AccountID   string
	DisplayName string
	Email       string
}

type NamedRef struct {
	ID   string
	Name string
}
