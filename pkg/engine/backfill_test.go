package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func changelogSearch(histories string) string {
	return fmt.Sprintf(`{"issues": [{"key": "CROP-1", "fields": {"summary": "epic"},
		"changelog": {"histories": [%s]}}]}`, histories)
}

const (
	startedEntry = `{"created": "2024-05-02T09:15:00.000-0300",
		"items": [{"field": "status", "fromString": "To Do", "toString": "7 PI Started"}]}`
	doneEntry = `{"created": "2024-06-10T17:40:00.000-0300",
		"items": [{"field": "status", "fromString": "7 PI Started", "toString": "Done"}]}`
)

func newBackfillService(histories string) (*Service, *mockClient) {
	mock := &mockClient{responses: map[string]string{
		"search": changelogSearch(histories),
	}}
	return NewService(mock, missCache{}, testConfig(), zerolog.Nop()), mock
}

func parseChangelog(t *testing.T, histories string) Changelog {
	t.Helper()
	var cl Changelog
	raw := fmt.Sprintf(`{"histories": [%s]}`, histories)
	if err := json.Unmarshal([]byte(raw), &cl); err != nil {
		t.Fatalf("bad changelog fixture: %v", err)
	}
	return cl
}

func putFields(t *testing.T, mock *mockClient) map[string]any {
	t.Helper()
	payload, ok := mock.lastPut.(map[string]any)
	if !ok {
		t.Fatalf("unexpected PUT payload type %T", mock.lastPut)
	}
	return payload["fields"].(map[string]any)
}

func TestBackfillDates_BothMarkersFound(t *testing.T) {
	svc, mock := newBackfillService(startedEntry + "," + doneEntry)

	report, err := svc.BackfillDates(context.Background(), "Platform")
	if err != nil {
		t.Fatalf("BackfillDates failed: %v", err)
	}
	if report.Scanned != 1 || report.Updated != 1 || report.Partial != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(mock.putCalls) != 1 || mock.putCalls[0] != "issue/CROP-1" {
		t.Fatalf("expected one PUT to issue/CROP-1, got %v", mock.putCalls)
	}
	fields := putFields(t, mock)
	if fields["customfield_10015"] != "2024-05-02" {
		t.Errorf("expected start date 2024-05-02, got %v", fields["customfield_10015"])
	}
	if fields["customfield_10233"] != "2024-06-10" {
		t.Errorf("expected end date 2024-06-10, got %v", fields["customfield_10233"])
	}
}

func TestBackfillDates_OnlyStartMarkerIsPartial(t *testing.T) {
	svc, mock := newBackfillService(startedEntry)

	report, err := svc.BackfillDates(context.Background(), "Platform")
	if err != nil {
		t.Fatalf("BackfillDates failed: %v", err)
	}
	if report.Partial != 1 || report.Updated != 1 {
		t.Errorf("expected a partial update, got %+v", report)
	}
	fields := putFields(t, mock)
	if fields["customfield_10015"] != "2024-05-02" {
		t.Errorf("expected start date 2024-05-02, got %v", fields["customfield_10015"])
	}
	if fields["customfield_10233"] != nil {
		t.Errorf("missing end marker must be sent as null, got %v", fields["customfield_10233"])
	}
}

func TestBackfillDates_NoMarkersNoUpdate(t *testing.T) {
	histories := `{"created": "2024-05-02T09:15:00.000-0300",
		"items": [{"field": "assignee", "fromString": "", "toString": "dev"}]}`
	svc, mock := newBackfillService(histories)

	report, err := svc.BackfillDates(context.Background(), "Platform")
	if err != nil {
		t.Fatalf("BackfillDates failed: %v", err)
	}
	if report.Scanned != 1 || report.Updated != 0 || report.Partial != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(mock.putCalls) != 0 {
		t.Errorf("expected no PUT for an epic without markers, got %v", mock.putCalls)
	}
}

func TestBackfillDates_NoEpicsFound(t *testing.T) {
	mock := &mockClient{responses: map[string]string{"search": `{"issues": []}`}}
	svc := NewService(mock, missCache{}, testConfig(), zerolog.Nop())

	report, err := svc.BackfillDates(context.Background(), "Platform")
	if err != nil {
		t.Fatalf("BackfillDates failed: %v", err)
	}
	if report.Scanned != 0 || len(mock.putCalls) != 0 {
		t.Errorf("expected an empty run, got %+v with puts %v", report, mock.putCalls)
	}
}

func TestScanChangelog_FirstOccurrenceWins(t *testing.T) {
	secondStart := `{"created": "2024-05-20T08:00:00.000-0300",
		"items": [{"field": "status", "fromString": "Blocked", "toString": "7 PI Started"}]}`
	svc, _ := newBackfillService("")
	cl := parseChangelog(t, startedEntry+","+secondStart+","+doneEntry)

	start, end := svc.scanChangelog(cl)
	if start == nil || end == nil {
		t.Fatal("expected both markers to be found")
	}
	want := time.Date(2024, 5, 2, 9, 15, 0, 0, start.Location())
	if !start.Equal(want) {
		t.Errorf("expected first start marker to win, got %v", start)
	}
}

func TestScanChangelog_MalformedTimestampSkipped(t *testing.T) {
	broken := `{"created": "yesterday",
		"items": [{"field": "status", "fromString": "To Do", "toString": "7 PI Started"}]}`
	svc, _ := newBackfillService("")
	cl := parseChangelog(t, broken)

	start, end := svc.scanChangelog(cl)
	if start != nil || end != nil {
		t.Errorf("expected no markers from a malformed entry, got start=%v end=%v", start, end)
	}
}
