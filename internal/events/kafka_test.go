package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records written messages.
type fakeWriter struct {
	err    error
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisherPublish(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	e := New(TypeStatusChanged, at, StatusChanged{From: "ONLINE", To: "DEGRADED", ActiveCount: 2, TotalCount: 3})
	require.NoError(t, p.Publish(context.Background(), "system", e))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "system", string(msg.Key))
	assert.Equal(t, at, msg.Time)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeStatusChanged, string(msg.Headers[0].Value))

	var decoded struct {
		ID   string        `json:"id"`
		Type string        `json:"type"`
		Data StatusChanged `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, TypeStatusChanged, decoded.Type)
	assert.Equal(t, "DEGRADED", decoded.Data.To)
	assert.Equal(t, 3, decoded.Data.TotalCount)
}

func TestKafkaPublisherWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaPublisherWithWriter(&fakeWriter{err: boom})

	err := p.Publish(context.Background(), "k", New(TypeQuotesComputed, time.Now(), QuotesComputed{}))
	assert.ErrorIs(t, err, boom)
}

func TestKafkaPublisherMarshalError(t *testing.T) {
	fw := &fakeWriter{}
	p := NewKafkaPublisherWithWriter(fw)

	err := p.Publish(context.Background(), "k", New("bad", time.Now(), make(chan int)))
	assert.Error(t, err)
	assert.Empty(t, fw.msgs)
}

func TestKafkaPublisherClose(t *testing.T) {
	fw := &fakeWriter{}
	require.NoError(t, NewKafkaPublisherWithWriter(fw).Close())
	assert.True(t, fw.closed)
}

func TestNewAssignsDistinctIDs(t *testing.T) {
	a := New(TypeQuotesComputed, time.Now(), nil)
	b := New(TypeQuotesComputed, time.Now(), nil)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), "k", Event{}))
	assert.NoError(t, p.Close())
}
