package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// mockClient implements TrackerClient for testing.
type mockClient struct {
	responses map[string]string // endpoint -> JSON body
	getCalls  []string
	jqls      []string
	postCalls []string
	putCalls  []string
	lastPost  any
	lastPut   any
}

func (m *mockClient) Get(_ context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	m.getCalls = append(m.getCalls, endpoint)
	if jql := params.Get("jql"); jql != "" {
		m.jqls = append(m.jqls, jql)
	}
	if body, ok := m.responses[endpoint]; ok {
		return json.RawMessage(body), nil
	}
	return nil, nil
}

func (m *mockClient) Post(_ context.Context, endpoint string, payload any) (json.RawMessage, error) {
	m.postCalls = append(m.postCalls, endpoint)
	m.lastPost = payload
	if body, ok := m.responses[endpoint]; ok {
		return json.RawMessage(body), nil
	}
	return nil, nil
}

func (m *mockClient) Put(_ context.Context, endpoint string, payload any) (json.RawMessage, error) {
	m.putCalls = append(m.putCalls, endpoint)
	m.lastPut = payload
	return nil, nil
}

func (m *mockClient) countGets(prefix string) int {
	n := 0
	for _, c := range m.getCalls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// memCache is an always-valid in-memory CacheStore.
type memCache struct {
	entries map[string]json.RawMessage
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]json.RawMessage{}}
}

func (c *memCache) Load(key string, _ time.Duration) (json.RawMessage, bool) {
	raw, ok := c.entries[key]
	return raw, ok
}

func (c *memCache) Save(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memCache) Invalidate(key string) { delete(c.entries, key) }

// missCache never stores anything, so every service call goes to the client.
type missCache struct{}

func (missCache) Load(string, time.Duration) (json.RawMessage, bool) { return nil, false }
func (missCache) Save(string, any) error                             { return nil }
func (missCache) Invalidate(string)                                  {}

func testConfig() Config {
	return Config{
		Project:          "Core Services",
		SquadField:       "Squad[Dropdown]",
		SquadCustomField: "customfield_10265",
		StartDateField:   "customfield_10015",
		EndDateField:     "customfield_10233",
		InProgressStatus: "7 PI Started",
		DoneStatus:       "Done",
	}
}

const taskSchemaJSON = `{"fields": [
	{"key": "project", "fieldId": "project", "required": true, "schema": {"type": "project"}},
	{"key": "issuetype", "fieldId": "issuetype", "required": true, "schema": {"type": "issuetype"}},
	{"key": "summary", "fieldId": "summary", "required": true, "schema": {"type": "string"}},
	{"key": "description", "fieldId": "description", "schema": {"type": "string"}},
	{"key": "parent", "fieldId": "parent", "schema": {"type": "parent"}},
	{"key": "components", "fieldId": "components", "schema": {"type": "array"},
		"allowedValues": [{"id": "101", "name": "backend"}]},
	{"key": "customfield_10265", "fieldId": "customfield_10265", "schema": {"type": "option"},
		"allowedValues": [{"id": "9001", "value": "Platform"}]}
]}`

func newCreateMock() *mockClient {
	return &mockClient{responses: map[string]string{
		"project/CROP":                        `{"id": "10000", "key": "CROP"}`,
		"issue/createmeta/CROP/issuetypes":    `{"issueTypes": [{"id": "1", "name": "Task"}, {"id": "2", "name": "Bug"}]}`,
		"issue/createmeta/CROP/issuetypes/1":  taskSchemaJSON,
		"issue/createmeta/CROP/issuetypes/2":  taskSchemaJSON,
		"issue":                               `{"id": "20001", "key": "CROP-42"}`,
		"issue/bulk":                          `{"issues": [{"key": "CROP-43"}, {"key": "CROP-44"}, {"key": "CROP-45"}]}`,
	}}
}

func TestFetchIssues_CachesByQuery(t *testing.T) {
	mock := &mockClient{responses: map[string]string{
		"search": `{"issues": [{"key": "CROP-1", "fields": {"summary": "one"}}]}`,
	}}
	svc := NewService(mock, newMemCache(), testConfig(), zerolog.Nop())

	for i := 0; i < 3; i++ {
		issues, err := svc.FetchIssues(context.Background(), "project = 'X'", "key,summary", false)
		if err != nil {
			t.Fatalf("FetchIssues failed: %v", err)
		}
		if len(issues) != 1 || issues[0].Key != "CROP-1" {
			t.Fatalf("unexpected issues: %+v", issues)
		}
	}
	if got := mock.countGets("search"); got != 1 {
		t.Errorf("expected 1 search call with warm cache, got %d", got)
	}
}

func TestFetchIssues_DistinctQueriesDoNotShareCache(t *testing.T) {
	mock := &mockClient{responses: map[string]string{
		"search": `{"issues": []}`,
	}}
	svc := NewService(mock, newMemCache(), testConfig(), zerolog.Nop())

	svc.FetchIssues(context.Background(), "project = 'X'", "key", false)
	svc.FetchIssues(context.Background(), "project = 'Y'", "key", false)
	if got := mock.countGets("search"); got != 2 {
		t.Errorf("expected 2 search calls for distinct queries, got %d", got)
	}
}

func TestFetchCompletedEpics_QueryAndCache(t *testing.T) {
	mock := &mockClient{responses: map[string]string{
		"search": `{"issues": [{"key": "CROP-1", "fields": {"summary": "one"}}]}`,
	}}
	svc := NewService(mock, newMemCache(), testConfig(), zerolog.Nop())

	for i := 0; i < 2; i++ {
		issues, err := svc.FetchCompletedEpics(context.Background(), "Platform", 30)
		if err != nil {
			t.Fatalf("FetchCompletedEpics failed: %v", err)
		}
		if len(issues) != 1 || issues[0].Key != "CROP-1" {
			t.Fatalf("unexpected issues: %+v", issues)
		}
	}
	if got := mock.countGets("search"); got != 1 {
		t.Errorf("expected repeat fetch to be served from cache, got %d searches", got)
	}

	jql := mock.jqls[0]
	for _, want := range []string{
		"project = 'Core Services'",
		"type = Epic",
		"'Squad[Dropdown]' = 'Platform'",
		"statusCategory = Done",
		"resolved >= ",
	} {
		if !strings.Contains(jql, want) {
			t.Errorf("expected jql to contain %q, got %q", want, jql)
		}
	}
}

func TestFetchOpenIssues_Query(t *testing.T) {
	mock := &mockClient{responses: map[string]string{
		"search": `{"issues": []}`,
	}}
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	if _, err := svc.FetchOpenIssues(context.Background(), "Platform", "Story", "R1"); err != nil {
		t.Fatalf("FetchOpenIssues failed: %v", err)
	}
	jql := mock.jqls[0]
	for _, want := range []string{
		"type = 'Story'",
		"'Squad[Dropdown]' = 'Platform'",
		"statusCategory != Done",
		"fixVersion = 'R1'",
	} {
		if !strings.Contains(jql, want) {
			t.Errorf("expected jql to contain %q, got %q", want, jql)
		}
	}

	if _, err := svc.FetchOpenIssues(context.Background(), "Platform", "Story", ""); err != nil {
		t.Fatalf("FetchOpenIssues failed: %v", err)
	}
	if strings.Contains(mock.jqls[1], "fixVersion") {
		t.Errorf("expected no fixVersion clause without a version, got %q", mock.jqls[1])
	}
}

func TestCreateIssue_ResolvesTypeAndProject(t *testing.T) {
	mock := newCreateMock()
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	key, err := svc.CreateIssue(context.Background(), types.IssueSpec{
		"project_key": "CROP",
		"issuetype":   "Task",
		"summary":     "Ship it",
		"description": "All the details",
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if key != "CROP-42" {
		t.Errorf("expected key CROP-42, got %q", key)
	}
	if len(mock.postCalls) != 1 || mock.postCalls[0] != "issue" {
		t.Errorf("expected one POST to issue, got %v", mock.postCalls)
	}

	payload, ok := mock.lastPost.(map[string]any)
	if !ok {
		t.Fatalf("unexpected payload type %T", mock.lastPost)
	}
	fields := payload["fields"].(map[string]any)
	if project, _ := fields["project"].(map[string]any); project["id"] != "10000" {
		t.Errorf("expected project id 10000, got %v", fields["project"])
	}
	if _, present := fields["project_key"]; present {
		t.Error("project_key must not leak into the payload")
	}
}

func TestCreateIssue_UnknownIssueType(t *testing.T) {
	mock := newCreateMock()
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	_, err := svc.CreateIssue(context.Background(), types.IssueSpec{
		"project_key": "CROP",
		"issuetype":   "Saga",
		"summary":     "nope",
	})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Name != "Saga" {
		t.Errorf("expected failing name Saga, got %q", nf.Name)
	}
}

func TestCreateBulk_MemoizesMetadataPerType(t *testing.T) {
	mock := newCreateMock()
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	spec := types.BulkSpec{
		ProjectKey: "CROP",
		IssueType:  "Task",
		Parent:     "CROP-7",
		Squad:      "Platform",
		Issues: []types.BulkItem{
			{Summary: "one", Description: "d1", Components: []string{"backend"}},
			{Summary: "two", Description: "d2"},
			{Summary: "three", Description: "d3", IssueType: "Bug"},
			{Summary: "four", Description: "d4", IssueType: "Bug"},
		},
	}
	report, err := svc.CreateBulk(context.Background(), spec)
	if err != nil {
		t.Fatalf("CreateBulk failed: %v", err)
	}

	// 4 items but only 2 distinct issue types: at most 2 metadata fetches
	if got := mock.countGets("issue/createmeta/CROP/issuetypes/"); got != 2 {
		t.Errorf("expected 2 metadata fetches for 2 distinct types, got %d", got)
	}
	if len(mock.postCalls) != 1 || mock.postCalls[0] != "issue/bulk" {
		t.Errorf("expected a single bulk POST, got %v", mock.postCalls)
	}
	if len(report.Created) != 3 {
		t.Errorf("expected 3 created keys from the response, got %v", report.Created)
	}
	if len(report.Failed) != 0 {
		t.Errorf("expected no failures, got %+v", report.Failed)
	}

	payload := mock.lastPost.(map[string]any)
	updates := payload["issueUpdates"].([]map[string]any)
	if len(updates) != 4 {
		t.Fatalf("expected 4 issue updates, got %d", len(updates))
	}
	fields := updates[0]["fields"].(map[string]any)
	if squad, _ := fields["customfield_10265"].(map[string]string); squad["id"] != "9001" {
		t.Errorf("expected squad option id 9001, got %v", fields["customfield_10265"])
	}
	if parent, _ := fields["parent"].(map[string]any); parent["key"] != "CROP-7" {
		t.Errorf("expected parent CROP-7, got %v", fields["parent"])
	}
}

func TestCreateBulk_InvalidItemReportedNotFatal(t *testing.T) {
	mock := newCreateMock()
	mock.responses["issue/bulk"] = `{"issues": [{"key": "CROP-43"}]}`
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	spec := types.BulkSpec{
		ProjectKey: "CROP",
		IssueType:  "Task",
		Issues: []types.BulkItem{
			{Summary: "good", Description: "fine"},
			{Summary: "bad", Description: "broken", Components: []string{"mainframe"}},
		},
	}
	report, err := svc.CreateBulk(context.Background(), spec)
	if err != nil {
		t.Fatalf("CreateBulk failed: %v", err)
	}
	if len(report.Created) != 1 {
		t.Errorf("expected 1 created issue, got %v", report.Created)
	}
	if len(report.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %+v", report.Failed)
	}
	if report.Failed[0].Summary != "bad" {
		t.Errorf("expected failure to name the bad item, got %q", report.Failed[0].Summary)
	}
	if !strings.Contains(report.Failed[0].Reason, "components") {
		t.Errorf("expected failure to name the offending field, got %q", report.Failed[0].Reason)
	}
}

func TestCreateBulk_AllItemsInvalid(t *testing.T) {
	mock := newCreateMock()
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	spec := types.BulkSpec{
		ProjectKey: "CROP",
		IssueType:  "Saga",
		Issues:     []types.BulkItem{{Summary: "one"}},
	}
	report, err := svc.CreateBulk(context.Background(), spec)
	if err == nil {
		t.Fatal("expected error when no item produced a valid payload")
	}
	if len(mock.postCalls) != 0 {
		t.Errorf("expected no bulk POST, got %v", mock.postCalls)
	}
	if len(report.Failed) != 1 {
		t.Errorf("expected 1 reported failure, got %+v", report.Failed)
	}
}

func TestFetchProjectID_NotFound(t *testing.T) {
	mock := &mockClient{responses: map[string]string{}}
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	_, err := svc.FetchProjectID(context.Background(), "NOPE")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
