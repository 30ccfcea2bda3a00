package cxdb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// mockCXDBClient is a test double for the cxdb client.
type mockCXDBClient struct {
	mu             sync.Mutex
	createContexts int
	appendRequests []*cxdbclient.AppendRequest
	nextContextID  uint64
	createErr      error
	appendErr      error
}

func (m *mockCXDBClient) CreateContext(_ context.Context, _ uint64) (*cxdbclient.ContextHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createContexts++
	m.nextContextID++
	return &cxdbclient.ContextHead{ContextID: m.nextContextID}, nil
}

func (m *mockCXDBClient) AppendTurn(_ context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.appendRequests = append(m.appendRequests, req)
	return &cxdbclient.AppendResult{ContextID: req.ContextID, TurnID: uint64(len(m.appendRequests)), Depth: 1}, nil
}

func decodeConversationItem(t *testing.T, payload []byte) cxdtypes.ConversationItem {
	t.Helper()
	var item cxdtypes.ConversationItem
	if err := cxdbclient.DecodeMsgpackInto(payload, &item); err != nil {
		t.Fatalf("DecodeMsgpackInto failed: %v", err)
	}
	return item
}

func newReport(id, fingerprint string) *bytehot.BugReport {
	return &bytehot.BugReport{
		ReportID:             id,
		GeneratedAt:          time.Date(2025, 1, 26, 12, 0, 0, 0, time.UTC),
		Severity:             bytehot.BugSeverityHigh,
		Category:             bytehot.BugCategoryValidationError,
		ExceptionMessage:     "Event-driven error: bytecode rejected",
		Fingerprint:          fingerprint,
		SnapshotID:           "snap-1",
		EventCount:           3,
		ReproducibilityScore: 0.85,
		Recommendations:      []string{"Check bytecode compatibility"},
		ReproductionSteps:    []string{"Start application"},
	}
}

func TestCXDBSink_GroupsByFingerprint(t *testing.T) {
	client := &mockCXDBClient{}
	sink := NewCXDBSink(client)
	ctx := context.Background()

	for _, r := range []*bytehot.BugReport{newReport("r-1", "fp-a"), newReport("r-2", "fp-a"), newReport("r-3", "fp-b")} {
		if err := sink.Write(ctx, r); err != nil {
			t.Fatalf("Write returned error: %v", err)
		}
	}

	if client.createContexts != 2 {
		t.Errorf("created %d contexts, want 2 (one per fingerprint)", client.createContexts)
	}
	reqs := client.appendRequests
	if len(reqs) != 3 {
		t.Fatalf("got %d append requests, want 3", len(reqs))
	}
	if reqs[0].ContextID != reqs[1].ContextID {
		t.Errorf("same fingerprint landed in contexts %d and %d", reqs[0].ContextID, reqs[1].ContextID)
	}
	if reqs[2].ContextID == reqs[0].ContextID {
		t.Errorf("different fingerprints should use different contexts")
	}
	if reqs[1].IdempotencyKey != "r-2" {
		t.Errorf("IdempotencyKey = %q, want r-2", reqs[1].IdempotencyKey)
	}

	first := decodeConversationItem(t, reqs[0].Payload)
	if first.ContextMetadata == nil {
		t.Fatal("first turn of a new context should carry metadata")
	}
	if first.ContextMetadata.ClientTag != "bytehot" {
		t.Errorf("ClientTag = %q, want bytehot", first.ContextMetadata.ClientTag)
	}
	wantLabels := []string{"bytehot", "bug-report", "VALIDATION_ERROR"}
	if strings.Join(first.ContextMetadata.Labels, ",") != strings.Join(wantLabels, ",") {
		t.Errorf("Labels = %v, want %v", first.ContextMetadata.Labels, wantLabels)
	}
	if second := decodeConversationItem(t, reqs[1].Payload); second.ContextMetadata != nil {
		t.Error("follow-up turns should not carry context metadata")
	}
}

func TestCXDBSink_PayloadFormat(t *testing.T) {
	client := &mockCXDBClient{}
	sink := NewCXDBSink(client, WithContextID(99))

	if err := sink.Write(context.Background(), newReport("r-1", "fp-a")); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if client.createContexts != 0 {
		t.Errorf("fixed context should not create contexts")
	}

	req := client.appendRequests[0]
	if req.ContextID != 99 {
		t.Errorf("ContextID = %d, want 99", req.ContextID)
	}
	if req.TypeID != cxdtypes.TypeIDConversationItem || req.TypeVersion != cxdtypes.TypeVersionConversationItem {
		t.Errorf("type = %s/%d, want ConversationItem", req.TypeID, req.TypeVersion)
	}

	item := decodeConversationItem(t, req.Payload)
	if item.ItemType != cxdtypes.ItemTypeSystem || item.Status != cxdtypes.ItemStatusComplete {
		t.Errorf("item type/status = %q/%q", item.ItemType, item.Status)
	}
	if item.System == nil || item.System.Kind != cxdtypes.SystemKindError {
		t.Fatalf("expected an error system message, got %+v", item.System)
	}
	if want := "HIGH VALIDATION_ERROR: Event-driven error: bytecode rejected"; item.System.Title != want {
		t.Errorf("Title = %q, want %q", item.System.Title, want)
	}

	var details map[string]any
	if err := json.Unmarshal([]byte(item.System.Content), &details); err != nil {
		t.Fatalf("content is not JSON: %v", err)
	}
	if details["reportId"] != "r-1" || details["severity"] != "HIGH" {
		t.Errorf("unexpected details: %v", details)
	}
}

func TestCXDBSink_TitleTruncated(t *testing.T) {
	r := newReport("r-1", "")
	r.ExceptionMessage = strings.Repeat("x", 200)

	got := title(r)
	if len(got) != 100 || !strings.HasSuffix(got, "...") {
		t.Errorf("title length %d (%q), want 100 ending in ...", len(got), got)
	}
}

func TestCXDBSink_Errors(t *testing.T) {
	boom := errors.New("unavailable")

	sink := NewCXDBSink(&mockCXDBClient{createErr: boom})
	if err := sink.Write(context.Background(), newReport("r-1", "fp")); !errors.Is(err, boom) {
		t.Errorf("Write error = %v, want create failure", err)
	}

	sink = NewCXDBSink(&mockCXDBClient{appendErr: boom})
	if err := sink.Write(context.Background(), newReport("r-1", "fp")); !errors.Is(err, boom) {
		t.Errorf("Write error = %v, want append failure", err)
	}
}
