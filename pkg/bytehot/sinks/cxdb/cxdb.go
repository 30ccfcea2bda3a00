// Package cxdb provides a sink that persists bug reports to cxdb as
// SystemMessage items. Reports sharing a fingerprint are appended to the same
// context, so a recurring failure reads as one conversation.
package cxdb

import (
	"context"
	"fmt"
	"sync"

	cxdbclient "github.com/strongdm/ai-cxdb/clients/go"
	cxdtypes "github.com/strongdm/ai-cxdb/clients/go/types"

	"github.com/rydnr/bytehot-observe/pkg/bytehot"
)

// CXDBClient is the minimal interface for cxdb client operations.
// The real *cxdb.Client satisfies this interface.
type CXDBClient interface {
	CreateContext(ctx context.Context, baseTurnID uint64) (*cxdbclient.ContextHead, error)
	AppendTurn(ctx context.Context, req *cxdbclient.AppendRequest) (*cxdbclient.AppendResult, error)
}

// CXDBSinkOption configures the CXDB sink.
type CXDBSinkOption func(*cxdbSinkConfig)

type cxdbSinkConfig struct {
	labels    []string
	clientTag string
	contextID uint64
}

// WithLabels sets the labels attached to contexts the sink creates.
func WithLabels(labels []string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.labels = labels
	}
}

// WithClientTag sets the client tag for contexts the sink creates.
func WithClientTag(tag string) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.clientTag = tag
	}
}

// WithContextID appends every report to an existing context instead of
// creating one per fingerprint.
func WithContextID(id uint64) CXDBSinkOption {
	return func(c *cxdbSinkConfig) {
		c.contextID = id
	}
}

type cxdbSink struct {
	client    CXDBClient
	labels    []string
	clientTag string
	fixedID   uint64

	mu       sync.Mutex
	contexts map[string]uint64
}

// NewCXDBSink creates a sink that writes to cxdb.
func NewCXDBSink(client CXDBClient, opts ...CXDBSinkOption) bytehot.Sink {
	cfg := &cxdbSinkConfig{
		labels:    []string{"bytehot", "bug-report"},
		clientTag: "bytehot",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &cxdbSink{
		client:    client,
		labels:    cfg.labels,
		clientTag: cfg.clientTag,
		fixedID:   cfg.contextID,
		contexts:  make(map[string]uint64),
	}
}

// Write appends report to the context for its fingerprint, creating the
// context on first use.
func (s *cxdbSink) Write(ctx context.Context, report *bytehot.BugReport) error {
	if report == nil {
		return nil
	}

	// The lock spans context creation so concurrent reports with the same
	// fingerprint do not create two contexts.
	s.mu.Lock()
	contextID, created, err := s.contextFor(ctx, report.Fingerprint)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	item := s.buildConversationItem(report, created)

	payload, err := cxdbclient.EncodeMsgpack(item)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req := &cxdbclient.AppendRequest{
		ContextID:      contextID,
		ParentTurnID:   0,
		TypeID:         cxdtypes.TypeIDConversationItem,
		TypeVersion:    cxdtypes.TypeVersionConversationItem,
		Payload:        payload,
		IdempotencyKey: report.ReportID,
	}

	if _, err := s.client.AppendTurn(ctx, req); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *cxdbSink) contextFor(ctx context.Context, fingerprint string) (uint64, bool, error) {
	if s.fixedID != 0 {
		return s.fixedID, false, nil
	}
	if id, ok := s.contexts[fingerprint]; ok && fingerprint != "" {
		return id, false, nil
	}
	head, err := s.client.CreateContext(ctx, 0)
	if err != nil {
		return 0, false, fmt.Errorf("create report context: %w", err)
	}
	if fingerprint != "" {
		s.contexts[fingerprint] = head.ContextID
	}
	return head.ContextID, true, nil
}

func (s *cxdbSink) buildConversationItem(report *bytehot.BugReport, created bool) *cxdtypes.ConversationItem {
	item := &cxdtypes.ConversationItem{
		ItemType:  cxdtypes.ItemTypeSystem,
		Status:    cxdtypes.ItemStatusComplete,
		Timestamp: report.GeneratedAt.UnixMilli(),
		ID:        report.ReportID,
		System: &cxdtypes.SystemMessage{
			Kind:    cxdtypes.SystemKindError,
			Title:   title(report),
			Content: report.ToJSON(),
		},
	}

	// cxdb expects metadata on the first turn of a context.
	if created {
		item.ContextMetadata = &cxdtypes.ContextMetadata{
			Labels:    append(append([]string(nil), s.labels...), string(report.Category)),
			ClientTag: s.clientTag,
		}
	}
	return item
}

// title is "<SEVERITY> <CATEGORY>: <message>", capped at 100 bytes.
func title(report *bytehot.BugReport) string {
	t := string(report.Severity) + " " + string(report.Category)
	if report.ExceptionMessage != "" {
		const maxMsgLen = 80
		msg := report.ExceptionMessage
		if len(msg) > maxMsgLen {
			msg = msg[:maxMsgLen] + "..."
		}
		t += ": " + msg
	}
	if len(t) > 100 {
		t = t[:97] + "..."
	}
	return t
}

func (s *cxdbSink) Flush(context.Context) error {
	return nil
}

func (s *cxdbSink) Close() error {
	return nil
}
