package notify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depotwatch/internal/config"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	failOn   string
	closed   bool
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if subject == f.failOn {
		return stderrors.New("broker unavailable")
	}
	f.messages = append(f.messages, published{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func changedReport() snapshot.ChangeReport {
	report := snapshot.NewChangeReport(12, 11)
	report.DepotsNew["731"] = map[string]snapshot.ChangedManifest{
		"public": {GID: snapshot.StringValue("900"), OldGID: snapshot.StringValue("800"), Size: 2048},
	}
	report.DepotsOld["731"] = map[string]snapshot.ManifestEntry{
		"public": {GID: snapshot.StringValue("800"), Size: 1024},
	}
	return report
}

func newTestNotifier(pub Publisher) *Notifier {
	n := New(pub, "depotwatch")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return n
}

func TestAnnounceBothMessages(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, newTestNotifier(pub).Announce(t.Context(), "730", changedReport()))
	require.Len(t, pub.messages, 2)

	assert.Equal(t, "depotwatch.changenumber", pub.messages[0].subject)
	var cn ChangeNumberMessage
	require.NoError(t, json.Unmarshal(pub.messages[0].data, &cn))
	assert.Equal(t, ChangeNumberMessage{
		Identifier: "730",
		Old:        11,
		Latest:     12,
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, cn)

	assert.Equal(t, "depotwatch.depots", pub.messages[1].subject)
	assert.JSONEq(t, `{
		"identifier": "730",
		"latest": 12,
		"changes": [{"depot": "731", "manifest": "public", "gid": "900", "old_gid": "800", "size": 2048}],
		"timestamp": "2026-01-02T03:04:05Z"
	}`, string(pub.messages[1].data))
}

func TestAnnounceOnlyWhatChanged(t *testing.T) {
	pub := &fakePublisher{}
	n := newTestNotifier(pub)

	// change number moved but no manifest changed
	require.NoError(t, n.Announce(t.Context(), "730", snapshot.NewChangeReport(5, 4)))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "depotwatch.changenumber", pub.messages[0].subject)

	// manifest changed under the same change number
	pub.messages = nil
	report := changedReport()
	report.OldChangeNumber = report.LatestChangeNumber
	require.NoError(t, n.Announce(t.Context(), "730", report))
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "depotwatch.depots", pub.messages[0].subject)

	pub.messages = nil
	require.NoError(t, n.Announce(t.Context(), "730", snapshot.NewChangeReport(5, 5)))
	assert.Empty(t, pub.messages)
}

func TestAnnouncePublishFailure(t *testing.T) {
	pub := &fakePublisher{failOn: "depotwatch.changenumber"}
	err := newTestNotifier(pub).Announce(t.Context(), "730", changedReport())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotify))
	require.Len(t, pub.messages, 1, "depots message is still attempted")
	assert.Equal(t, "depotwatch.depots", pub.messages[0].subject)
}

func TestNotifierClose(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, New(pub, "x").Close())
	assert.True(t, pub.closed)
}

func TestNewNATSPublisher(t *testing.T) {
	_, err := NewNATSPublisher(config.NATSConfig{Enabled: false}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewNATSPublisher(config.NATSConfig{Enabled: true, URL: "nats://" + addr}, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotify))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	require.NoError(t, p.Publish(t.Context(), "a", nil))
	require.NoError(t, p.Close())
}
