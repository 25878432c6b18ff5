// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package events

import (
	"context"
	"errors"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

func testEvent(count int) *StationMoved {
	st := &models.Station{Type: models.StationWifi, MAC: "a1b2c3d4e5f6", Lat: 52.5, Lon: 13.4}
	block := &models.BlockEntry{Key: st.MAC, Count: count}
	return NewStationMoved("wifi_a", st, block, 7200, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestStationMovedTopic(t *testing.T) {
	t.Parallel()
	if got := testEvent(1).Topic(); got != TopicStationMoved {
		t.Errorf("expected %s, got %s", TopicStationMoved, got)
	}
	if got := testEvent(models.PermanentBlockThreshold).Topic(); got != TopicStationBlocked {
		t.Errorf("expected %s, got %s", TopicStationBlocked, got)
	}
}

func TestStationMovedEncoding(t *testing.T) {
	t.Parallel()
	ev := testEvent(2)
	data, err := ev.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalStationMoved(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Key != "a1b2c3d4e5f6" || got.Shard != "wifi_a" || got.BlockCount != 2 || got.Permanent {
		t.Errorf("unexpected decoded event: %+v", got)
	}

	if _, err := UnmarshalStationMoved([]byte(`{"event_id":"x","shard":"wifi_a"}`)); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
	if _, err := UnmarshalStationMoved([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestMemoryPublisher(t *testing.T) {
	t.Parallel()
	m := metrics.NewForTesting()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := New(ctx, &config.EventsConfig{Mode: ModeMemory}, logging.Nop(), m)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	msgs, err := p.Subscribe(ctx, TopicStationMoved)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := testEvent(1)
	if err := p.PublishMoved(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		got, err := UnmarshalStationMoved(msg.Payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.EventID != ev.EventID {
			t.Errorf("expected event %s, got %s", ev.EventID, got.EventID)
		}
		if msg.Metadata.Get("shard") != "wifi_a" {
			t.Errorf("expected shard metadata, got %q", msg.Metadata.Get("shard"))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}

	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues(TopicStationMoved, "ok")); got != 1 {
		t.Errorf("expected 1 published event, got %v", got)
	}
}

func TestDisabledPublisher(t *testing.T) {
	t.Parallel()
	p, err := New(context.Background(), &config.EventsConfig{Mode: ModeDisabled}, logging.Nop(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := p.PublishMoved(context.Background(), testEvent(1)); err != nil {
		t.Errorf("expected no-op publish, got %v", err)
	}
	if _, err := p.Subscribe(context.Background(), TopicStationMoved); !errors.Is(err, ErrSubscribeUnsupported) {
		t.Errorf("expected ErrSubscribeUnsupported, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.PublishMoved(context.Background(), testEvent(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	t.Parallel()
	p, err := New(context.Background(), &config.EventsConfig{Mode: ModeMemory}, logging.Nop(), nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	ev := testEvent(1)
	ev.Key = ""
	if err := p.PublishMoved(context.Background(), ev); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestUnknownMode(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), &config.EventsConfig{Mode: "kafka"}, logging.Nop(), nil); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestEmbeddedNATSPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := &config.EventsConfig{
		Mode:          ModeNATS,
		Embedded:      true,
		StoreDir:      t.TempDir(),
		Stream:        "STATIONS_TEST",
		MaxReconnects: 1,
		ReconnectWait: 100 * time.Millisecond,
	}
	p, err := New(ctx, cfg, logging.Nop(), metrics.NewForTesting())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	url := p.server.ClientURL()
	if err := p.PublishMoved(ctx, testEvent(1)); err != nil {
		t.Fatalf("publish moved: %v", err)
	}
	if err := p.PublishMoved(ctx, testEvent(models.PermanentBlockThreshold)); err != nil {
		t.Fatalf("publish blocked: %v", err)
	}

	nc, err := natsgo.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}
	stream, err := js.Stream(ctx, cfg.Stream)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		t.Fatalf("stream info: %v", err)
	}
	if info.State.Msgs != 2 {
		t.Errorf("expected 2 messages in stream, got %d", info.State.Msgs)
	}

	// Second initialisation updates the existing stream.
	if err := EnsureStream(ctx, url, DefaultStreamConfig(cfg.Stream)); err != nil {
		t.Errorf("ensure existing stream: %v", err)
	}
}

type fakeJetStream struct {
	existing bool
	created  int
	updated  int
	checkErr error
}

func (f *fakeJetStream) Stream(context.Context, string) (jetstream.Stream, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if !f.existing {
		return nil, jetstream.ErrStreamNotFound
	}
	return nil, nil
}

func (f *fakeJetStream) CreateStream(context.Context, jetstream.StreamConfig) (jetstream.Stream, error) {
	f.created++
	return nil, nil
}

func (f *fakeJetStream) UpdateStream(context.Context, jetstream.StreamConfig) (jetstream.Stream, error) {
	f.updated++
	return nil, nil
}

func TestEnsureStream(t *testing.T) {
	t.Parallel()
	cfg := DefaultStreamConfig("STATIONS")

	tests := []struct {
		name            string
		js              *fakeJetStream
		created, update int
		wantErr         bool
	}{
		{"creates missing stream", &fakeJetStream{}, 1, 0, false},
		{"updates existing stream", &fakeJetStream{existing: true}, 0, 1, false},
		{"fails on lookup error", &fakeJetStream{checkErr: errors.New("boom")}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ensureStream(context.Background(), tt.js, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.js.created != tt.created || tt.js.updated != tt.update {
				t.Errorf("expected created=%d updated=%d, got %d/%d", tt.created, tt.update, tt.js.created, tt.js.updated)
			}
		})
	}
}
