package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dfcarvalho/jira-epic-helper/pkg/payload"
	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// CreateIssue creates a single issue from a declarative spec: resolve the
// issue type by name, fetch the type's field schema, build the payload and
// submit it. Returns the created issue key.
func (s *Service) CreateIssue(ctx context.Context, spec types.IssueSpec) (string, error) {
	projectKey := spec.ProjectKey()
	typeName := spec.IssueType()
	if projectKey == "" || typeName == "" {
		return "", dataErr("issue spec must declare project_key and issuetype")
	}

	typeID, err := s.resolveTypeID(ctx, projectKey, typeName)
	if err != nil {
		return "", err
	}
	schema, err := s.FetchTypeMetadata(ctx, projectKey, typeID)
	if err != nil {
		return "", err
	}
	values, err := s.resolveProjectValue(ctx, spec)
	if err != nil {
		return "", err
	}

	built, err := payload.Build(schema, typeID, values)
	if err != nil {
		return "", fmt.Errorf("build payload for project %q: %w", projectKey, err)
	}

	resp, err := s.client.Post(ctx, "issue", built)
	if err != nil {
		return "", &TransportError{Op: fmt.Sprintf("create issue in project %q", projectKey), Err: err}
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(resp, &out); err != nil || out.Key == "" {
		return "", dataErr("issue creation returned no key for project %q", projectKey)
	}
	s.log.Info().Str("issue", out.Key).Msg("issue created")
	return out.Key, nil
}

// BulkFailure records which batch item failed and why.
type BulkFailure struct {
	Summary string
	Reason  string
}

// BulkReport summarizes a bulk creation: keys created and items that failed
// payload construction.
type BulkReport struct {
	Created []string
	Failed  []BulkFailure
}

func (r *BulkReport) String() string {
	return fmt.Sprintf("Summary: %d issues created, %d failed", len(r.Created), len(r.Failed))
}

// CreateBulk creates a batch of issues as one bulk request. Field schemas
// are memoized per issue type for the life of the batch: a type already seen
// earlier in the batch is never fetched again (metadata fetches are
// rate-limited remote calls, so this is a correctness contract, not an
// optimization). An item that fails validation is reported and skipped; it
// never aborts the rest of the batch.
func (s *Service) CreateBulk(ctx context.Context, spec types.BulkSpec) (*BulkReport, error) {
	if spec.ProjectKey == "" || len(spec.Issues) == 0 {
		return nil, dataErr("bulk spec must declare project_key and at least one issue")
	}

	projectID, err := s.FetchProjectID(ctx, spec.ProjectKey)
	if err != nil {
		return nil, err
	}
	issueTypes, err := s.FetchIssueTypes(ctx, spec.ProjectKey)
	if err != nil {
		return nil, err
	}

	report := &BulkReport{}
	// schema cache with lifetime = this batch
	schemas := make(map[string]types.IssueTypeSchema)
	var updates []map[string]any

	for _, item := range spec.Issues {
		typeName := item.IssueType
		if typeName == "" {
			typeName = spec.IssueType
		}
		typeID := findTypeID(issueTypes, typeName)
		if typeID == "" {
			report.Failed = append(report.Failed, BulkFailure{
				Summary: item.Summary,
				Reason:  (&NotFoundError{Kind: "issue type", Name: typeName}).Error(),
			})
			continue
		}

		schema, ok := schemas[typeID]
		if !ok {
			schema, err = s.FetchTypeMetadata(ctx, spec.ProjectKey, typeID)
			if err != nil {
				report.Failed = append(report.Failed, BulkFailure{Summary: item.Summary, Reason: err.Error()})
				continue
			}
			schemas[typeID] = schema
		}

		values := map[string]any{
			"project":     projectID,
			"issuetype":   typeName,
			"summary":     item.Summary,
			"description": item.Description,
		}
		if len(item.Components) > 0 {
			values["components"] = item.Components
		}
		if spec.Parent != "" {
			values["parent"] = spec.Parent
		}
		if spec.Squad != "" && s.cfg.SquadCustomField != "" {
			values[s.cfg.SquadCustomField] = spec.Squad
		}

		built, err := payload.Build(schema, typeID, values)
		if err != nil {
			report.Failed = append(report.Failed, BulkFailure{Summary: item.Summary, Reason: err.Error()})
			continue
		}
		updates = append(updates, built)
	}

	if len(updates) == 0 {
		return report, dataErr("no issue in the batch produced a valid payload")
	}

	resp, err := s.client.Post(ctx, "issue/bulk", map[string]any{"issueUpdates": updates})
	if err != nil {
		return report, &TransportError{Op: fmt.Sprintf("bulk create in project %q", spec.ProjectKey), Err: err}
	}
	var out struct {
		Issues []struct {
			Key string `json:"key"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return report, dataErr("malformed bulk creation response for project %q: %v", spec.ProjectKey, err)
	}
	for _, issue := range out.Issues {
		report.Created = append(report.Created, issue.Key)
	}
	s.log.Info().Int("created", len(report.Created)).Int("failed", len(report.Failed)).
		Str("project", spec.ProjectKey).Msg("bulk creation finished")
	return report, nil
}

// resolveProjectValue swaps the spec's project_key for the resolved project
// id expected by the payload builder. The spec itself is not mutated.
func (s *Service) resolveProjectValue(ctx context.Context, spec types.IssueSpec) (map[string]any, error) {
	values := make(map[string]any, len(spec))
	for k, v := range spec {
		values[k] = v
	}
	if key, ok := values["project_key"].(string); ok {
		id, err := s.FetchProjectID(ctx, key)
		if err != nil {
			return nil, err
		}
		values["project"] = id
		delete(values, "project_key")
	}
	return values, nil
}

func (s *Service) resolveTypeID(ctx context.Context, projectKey, typeName string) (string, error) {
	issueTypes, err := s.FetchIssueTypes(ctx, projectKey)
	if err != nil {
		return "", err
	}
	if id := findTypeID(issueTypes, typeName); id != "" {
		return id, nil
	}
	return "", &NotFoundError{Kind: "issue type", Name: typeName}
}

func findTypeID(issueTypes []types.IssueType, name string) string {
	for _, it := range issueTypes {
		if it.Name == name {
			return it.ID
		}
	}
	return ""
}
