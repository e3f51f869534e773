package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// fakeAuditRepo records saved entries; every other Repository method is
// left to the embedded nil interface and must not be called.
type fakeAuditRepo struct {
	domain.Repository
	saved   []*domain.AuditEntry
	saveErr error
}

func (f *fakeAuditRepo) SaveAuditEntries(ctx context.Context, tenantID string, entries []*domain.AuditEntry) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, entries...)
	return nil
}

type fakeAuditBus struct {
	domain.EventBus
	published []string
	pubErr    error
}

func (f *fakeAuditBus) Publish(ctx context.Context, tenantID, topic string, payload []byte) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, topic)
	return nil
}

func sampleEntries(n int) []*domain.AuditEntry {
	entries := make([]*domain.AuditEntry, n)
	for i := range entries {
		entries[i] = &domain.AuditEntry{
			ID:        "entry",
			TenantID:  "tenant-1",
			TxID:      "tx-1",
			Layer:     i + 1,
			LayerName: domain.LayerName(i + 1),
			Status:    domain.LayerStatusPass,
			Timestamp: time.Now().UTC(),
		}
	}
	return entries
}

func TestRecorder_Record(t *testing.T) {
	repo := &fakeAuditRepo{}
	bus := &fakeAuditBus{}
	rec := NewRecorder(repo, bus)

	rec.Record(context.Background(), "tenant-1", sampleEntries(7))

	if len(repo.saved) != 7 {
		t.Errorf("Expected 7 entries persisted, got %d", len(repo.saved))
	}
	if len(bus.published) != 7 {
		t.Errorf("Expected 7 entries published, got %d", len(bus.published))
	}
	for _, topic := range bus.published {
		if topic != domain.TopicAuditEntry {
			t.Errorf("Expected topic %s, got %s", domain.TopicAuditEntry, topic)
		}
	}
}

func TestRecorder_FailuresNeverPropagate(t *testing.T) {
	repo := &fakeAuditRepo{saveErr: errors.New("db down")}
	bus := &fakeAuditBus{pubErr: errors.New("bus down")}
	rec := NewRecorder(repo, bus)

	// Must not panic or surface either failure.
	rec.Record(context.Background(), "tenant-1", sampleEntries(3))
}

func TestRecorder_NilSafety(t *testing.T) {
	var rec *Recorder
	rec.Record(context.Background(), "tenant-1", sampleEntries(1))

	rec = NewRecorder(nil, nil)
	rec.Record(context.Background(), "tenant-1", sampleEntries(1))
	rec.Record(context.Background(), "tenant-1", nil)
}

func TestBuildAuditEntries(t *testing.T) {
	tx := &domain.Transaction{
		ID:       "tx-1",
		TenantID: "tenant-1",
		UserID:   "user-1",
		ParsedTransaction: domain.ParsedTransaction{
			Provider: domain.ProviderMTN,
			Type:     domain.TypeSent,
			Amount:   fptr(50),
		},
	}

	in := runLayers(&tx.ParsedTransaction, nil, WindowCounts{})
	entries := buildAuditEntries(tx, &in, auditDetails{
		pattern: domain.PatternDetail{KeywordHits: 1},
	})

	if len(entries) != 7 {
		t.Fatalf("Expected one entry per layer, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Layer != i+1 {
			t.Errorf("Entry %d has layer %d", i, entry.Layer)
		}
		if entry.TxID != "tx-1" || entry.TenantID != "tenant-1" {
			t.Errorf("Entry %d not bound to the transaction: %+v", i, entry)
		}
		if entry.ID == "" {
			t.Errorf("Entry %d has no id", i)
		}
	}

	pattern, ok := entries[2].Detail.(domain.PatternDetail)
	if !ok {
		t.Fatalf("Expected pattern detail on layer 3, got %T", entries[2].Detail)
	}
	if pattern.KeywordHits != 1 {
		t.Errorf("Expected detail carried through, got %+v", pattern)
	}
}
