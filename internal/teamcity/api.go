package teamcity

import (
	"encoding/json"
	"strings"

	"github.com/pweiskircher/build-changes/internal/ci"
)

// Wire shapes of the TeamCity REST API in JSON mode. Numeric identifiers arrive as
// JSON numbers and are kept as opaque strings.

type buildListResponse struct {
	Count int             `json:"count"`
	Build []buildResponse `json:"build"`
}

type buildResponse struct {
	ID          json.Number `json:"id"`
	Number      string      `json:"number"`
	Status      string      `json:"status"`
	BuildTypeID string      `json:"buildTypeId"`
	WebURL      string      `json:"webUrl"`
}

type buildTypeListResponse struct {
	Count     int                 `json:"count"`
	BuildType []buildTypeResponse `json:"buildType"`
}

type buildTypeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectName string `json:"projectName"`
	ProjectID   string `json:"projectId"`
	WebURL      string `json:"webUrl"`
}

type changeListResponse struct {
	Count  int              `json:"count"`
	Change []changeResponse `json:"change"`
}

type changeResponse struct {
	ID       json.Number       `json:"id"`
	Version  string            `json:"version"`
	Username string            `json:"username"`
	Comment  string            `json:"comment"`
	WebURL   string            `json:"webUrl"`
	Files    *fileListResponse `json:"files"`
}

type fileListResponse struct {
	Count int            `json:"count"`
	File  []fileResponse `json:"file"`
}

type fileResponse struct {
	BeforeRevision string `json:"before-revision"`
	AfterRevision  string `json:"after-revision"`
	File           string `json:"file"`
	RelativeFile   string `json:"relative-file"`
}

type relatedIssuesResponse struct {
	IssueUsage []issueUsageResponse `json:"issueUsage"`
}

type issueUsageResponse struct {
	Issue issueResponse `json:"issue"`
}

type issueResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (raw buildResponse) toBuild() ci.Build {
	number := strings.TrimSpace(raw.Number)
	if number == "" {
		number = ci.NumberNone
	}
	return ci.Build{
		ID:          raw.ID.String(),
		Number:      number,
		Status:      strings.ToUpper(strings.TrimSpace(raw.Status)),
		BuildTypeID: strings.TrimSpace(raw.BuildTypeID),
		WebURL:      strings.TrimSpace(raw.WebURL),
	}
}

func (raw buildTypeResponse) toBuildType() ci.BuildType {
	return ci.BuildType{
		ID:          strings.TrimSpace(raw.ID),
		Name:        strings.TrimSpace(raw.Name),
		ProjectName: strings.TrimSpace(raw.ProjectName),
		ProjectID:   strings.TrimSpace(raw.ProjectID),
		WebURL:      strings.TrimSpace(raw.WebURL),
	}
}

func (raw changeResponse) toChangeDetail() ci.ChangeDetail {
	change := ci.ChangeDetail{
		ID:       raw.ID.String(),
		Version:  strings.TrimSpace(raw.Version),
		Username: strings.TrimSpace(raw.Username),
		Comment:  strings.TrimRight(raw.Comment, "\r\n"),
		WebURL:   strings.TrimSpace(raw.WebURL),
	}
	if raw.Files == nil {
		return change
	}
	for _, file := range raw.Files.File {
		change.Files = append(change.Files, ci.FileDetail{
			File:           file.File,
			RelativeFile:   file.RelativeFile,
			BeforeRevision: file.BeforeRevision,
			AfterRevision:  file.AfterRevision,
		})
	}
	return change
}
