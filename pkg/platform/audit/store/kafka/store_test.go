package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "mcpauth/pkg/platform/audit"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var results kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestAppendProducesJSONRecord(t *testing.T) {
	p := &fakeProducer{}
	store := New(p, "mcpauth.audit")

	err := store.Append(context.Background(), audit.Event{
		UserID:   "octocat",
		ClientID: "abc",
		Action:   string(audit.EventConsentGranted),
	})
	require.NoError(t, err)
	require.Len(t, p.records, 1)

	rec := p.records[0]
	assert.Equal(t, "mcpauth.audit", rec.Topic)
	assert.Equal(t, []byte("abc"), rec.Key)

	var got audit.Event
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, audit.CategoryCompliance, got.Category)
	assert.Equal(t, "octocat", got.UserID)

	store.Close()
	assert.True(t, p.closed)
}

func TestAppendOpensCircuitAfterFailures(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	store := New(p, "t")
	ev := audit.Event{Action: string(audit.EventTokenIssued)}

	for range 3 {
		assert.Error(t, store.Append(context.Background(), ev))
	}
	assert.ErrorIs(t, store.Append(context.Background(), ev), ErrCircuitOpen)
	assert.Len(t, p.records, 3, "no produce attempts while open")
}
