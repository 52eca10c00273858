package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/dfcarvalho/jira-epic-helper/pkg/cache"
	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// TrackerClient is the remote tracker surface the service consumes. All
// three verbs return the parsed JSON body or fail uniformly.
type TrackerClient interface {
	Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error)
	Post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
	Put(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// CacheStore is the persistence collaborator used to avoid redundant remote
// queries.
type CacheStore interface {
	Load(key string, maxAge time.Duration) (json.RawMessage, bool)
	Save(key string, value any) error
	Invalidate(key string)
}

// Config carries the tracker-specific names the service needs: the project,
// the custom field ids for dates and squad, and the status markers the
// backfill scans for.
type Config struct {
	Project          string
	SquadField       string
	SquadCustomField string
	StartDateField   string
	EndDateField     string
	InProgressStatus string
	DoneStatus       string
	CacheTTL         time.Duration
}

// Service composes the tracker client and the cache store to fetch, update
// and create issues. One instance serves one CLI invocation.
type Service struct {
	client  TrackerClient
	cache   CacheStore
	cfg     Config
	queries QueryBuilder
	log     zerolog.Logger
}

// NewService wires a service over the given collaborators.
func NewService(client TrackerClient, store CacheStore, cfg Config, log zerolog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Minute
	}
	return &Service{
		client:  client,
		cache:   store,
		cfg:     cfg,
		queries: QueryBuilder{Project: cfg.Project, SquadField: cfg.SquadField},
		log:     log,
	}
}

// Issue is the slice of a search response the service works with.
type Issue struct {
	Key       string         `json:"key"`
	Fields    map[string]any `json:"fields"`
	Changelog Changelog      `json:"changelog"`
}

// Changelog is an issue's status-mutation history.
type Changelog struct {
	Histories []ChangeEntry `json:"histories"`
}

// ChangeEntry is one changelog record with its items.
type ChangeEntry struct {
	Created string       `json:"created"`
	Items   []ChangeItem `json:"items"`
}

// ChangeItem is one field mutation inside a changelog entry.
type ChangeItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

type searchResult struct {
	Issues []Issue `json:"issues"`
}

// FetchIssues runs a JQL query, serving from cache when a fresh enough entry
// exists for the same query and parameters.
func (s *Service) FetchIssues(ctx context.Context, jql, fields string, expandChangelog bool) ([]Issue, error) {
	expand := ""
	if expandChangelog {
		expand = "changelog"
	}
	key := cache.Key("issues", jql, fields, expand)

	raw, ok := s.cache.Load(key, s.cfg.CacheTTL)
	if !ok {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("fields", fields)
		params.Set("maxResults", "100")
		if expand != "" {
			params.Set("expand", expand)
		}
		s.log.Info().Str("jql", jql).Msg("fetching issues")
		resp, err := s.client.Get(ctx, "search", params)
		if err != nil {
			return nil, &TransportError{Op: fmt.Sprintf("fetch issues for jql %q", jql), Err: err}
		}
		if resp == nil {
			s.log.Warn().Str("jql", jql).Msg("search returned no data")
			return nil, nil
		}
		if err := s.cache.Save(key, json.RawMessage(resp)); err != nil {
			s.log.Warn().Err(err).Msg("caching search result failed")
		}
		raw = resp
	}

	var result searchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, dataErr("malformed search response for jql %q: %v", jql, err)
	}
	return result.Issues, nil
}

// FetchCompletedEpics returns a team's epics resolved within the last
// sinceDays days.
func (s *Service) FetchCompletedEpics(ctx context.Context, team string, sinceDays int) ([]Issue, error) {
	since := time.Now().AddDate(0, 0, -sinceDays)
	return s.FetchIssues(ctx, s.queries.CompletedSince(team, since), "*all", false)
}

// FetchOpenIssues returns a team's open issues of the given type, optionally
// narrowed to a fix version.
func (s *Service) FetchOpenIssues(ctx context.Context, team, issueType, fixVersion string) ([]Issue, error) {
	return s.FetchIssues(ctx, s.queries.OpenByType(team, issueType, fixVersion), "*all", false)
}

// FetchIssueTypes returns the issue types available in a project.
func (s *Service) FetchIssueTypes(ctx context.Context, projectKey string) ([]types.IssueType, error) {
	key := cache.Key("issuetypes", projectKey)
	raw, ok := s.cache.Load(key, s.cfg.CacheTTL)
	if !ok {
		endpoint := fmt.Sprintf("issue/createmeta/%s/issuetypes", projectKey)
		s.log.Info().Str("project", projectKey).Msg("fetching issue types")
		resp, err := s.client.Get(ctx, endpoint, nil)
		if err != nil {
			return nil, &TransportError{Op: fmt.Sprintf("fetch issue types for project %q", projectKey), Err: err}
		}
		if resp == nil {
			return nil, &NotFoundError{Kind: "issue types for project", Name: projectKey}
		}
		if err := s.cache.Save(key, json.RawMessage(resp)); err != nil {
			s.log.Warn().Err(err).Msg("caching issue types failed")
		}
		raw = resp
	}

	var out struct {
		IssueTypes []types.IssueType `json:"issueTypes"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, dataErr("malformed issue type response for project %q: %v", projectKey, err)
	}
	return out.IssueTypes, nil
}

// FetchTypeMetadata returns the field schema for one (project, issue type)
// pair. The schema is immutable for the duration of a run.
func (s *Service) FetchTypeMetadata(ctx context.Context, projectKey, issueTypeID string) (types.IssueTypeSchema, error) {
	var schema types.IssueTypeSchema

	key := cache.Key("issuetype_metadata", projectKey, issueTypeID)
	raw, ok := s.cache.Load(key, s.cfg.CacheTTL)
	if !ok {
		endpoint := fmt.Sprintf("issue/createmeta/%s/issuetypes/%s", projectKey, issueTypeID)
		s.log.Info().Str("project", projectKey).Str("issuetype", issueTypeID).Msg("fetching type metadata")
		resp, err := s.client.Get(ctx, endpoint, nil)
		if err != nil {
			return schema, &TransportError{Op: fmt.Sprintf("fetch metadata for issue type %q in project %q", issueTypeID, projectKey), Err: err}
		}
		if resp == nil {
			return schema, &NotFoundError{Kind: "metadata for issue type", Name: issueTypeID}
		}
		if err := s.cache.Save(key, json.RawMessage(resp)); err != nil {
			s.log.Warn().Err(err).Msg("caching type metadata failed")
		}
		raw = resp
	}

	if err := json.Unmarshal(raw, &schema); err != nil {
		return schema, dataErr("malformed metadata for issue type %q: %v", issueTypeID, err)
	}
	return schema, nil
}

// FetchProjectID resolves a project key to its tracker id.
func (s *Service) FetchProjectID(ctx context.Context, projectKey string) (string, error) {
	key := cache.Key("project_data", projectKey)
	raw, ok := s.cache.Load(key, s.cfg.CacheTTL)
	if !ok {
		s.log.Info().Str("project", projectKey).Msg("fetching project data")
		resp, err := s.client.Get(ctx, "project/"+projectKey, nil)
		if err != nil {
			return "", &TransportError{Op: fmt.Sprintf("fetch project %q", projectKey), Err: err}
		}
		if resp == nil {
			return "", &NotFoundError{Kind: "project", Name: projectKey}
		}
		if err := s.cache.Save(key, json.RawMessage(resp)); err != nil {
			s.log.Warn().Err(err).Msg("caching project data failed")
		}
		raw = resp
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", dataErr("malformed project response for %q: %v", projectKey, err)
	}
	if out.ID == "" {
		return "", &NotFoundError{Kind: "project", Name: projectKey}
	}
	return out.ID, nil
}

// UpdateIssueFields sends a field update for one issue.
func (s *Service) UpdateIssueFields(ctx context.Context, issueKey string, fields map[string]any) error {
	s.log.Info().Str("issue", issueKey).Interface("fields", fields).Msg("updating issue fields")
	if _, err := s.client.Put(ctx, "issue/"+issueKey, map[string]any{"fields": fields}); err != nil {
		return &TransportError{Op: fmt.Sprintf("update issue %q", issueKey), Err: err}
	}
	return nil
}
