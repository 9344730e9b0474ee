package diff

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depotwatch/internal/snapshot"
)

func entry(gid string, size int64) snapshot.ManifestEntry {
	return snapshot.ManifestEntry{
		GID:      snapshot.StringValue(gid),
		Size:     snapshot.Size(size),
		Download: snapshot.StringValue("d" + gid),
	}
}

func snap(cn int64, depots map[string]snapshot.Depot) snapshot.Snapshot {
	return snapshot.Snapshot{ChangeNumber: cn, Depots: depots}
}

func TestComputeIdenticalSnapshotsIsEmpty(t *testing.T) {
	s := snap(10, map[string]snapshot.Depot{
		"731": {
			Manifests:          snapshot.Manifests{"public": entry("1", 100)},
			EncryptedManifests: snapshot.Manifests{"beta": entry("2", 200)},
		},
	})

	report := Compute(s, s)
	assert.Equal(t, int64(10), report.LatestChangeNumber)
	assert.Equal(t, int64(10), report.OldChangeNumber)
	assert.Empty(t, report.DepotsNew)
	assert.Empty(t, report.DepotsOld)
	assert.False(t, report.HasChanges())
}

func TestComputeDetectsChangedManifest(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{
		"731": {Manifests: snapshot.Manifests{"public": entry("111", 10), "beta": entry("5", 1)}},
	})
	current := snap(2, map[string]snapshot.Depot{
		"731": {Manifests: snapshot.Manifests{"public": entry("222", 12), "beta": entry("5", 1)}},
	})

	report := Compute(old, current)
	assert.Equal(t, int64(2), report.LatestChangeNumber)
	assert.Equal(t, int64(1), report.OldChangeNumber)
	require.Contains(t, report.DepotsNew, "731")
	assert.Len(t, report.DepotsNew["731"], 1)
	assert.Equal(t, snapshot.ChangedManifest{
		GID:      snapshot.StringValue("222"),
		Download: snapshot.StringValue("d222"),
		Size:     12,
		OldGID:   snapshot.StringValue("111"),
	}, report.DepotsNew["731"]["public"])
	assert.Equal(t, entry("111", 10), report.DepotsOld["731"]["public"])
}

func TestComputeSizeOnlyChangeIsReported(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{"1": {Manifests: snapshot.Manifests{"public": entry("g", 1)}}})
	current := snap(1, map[string]snapshot.Depot{"1": {Manifests: snapshot.Manifests{"public": entry("g", 2)}}})

	report := Compute(old, current)
	require.Equal(t, 1, report.Count())
	assert.Equal(t, report.DepotsNew["1"]["public"].GID, report.DepotsNew["1"]["public"].OldGID)
}

func TestComputeIntersectionOnly(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{
		"1": {Manifests: snapshot.Manifests{"public": entry("a", 1), "removed": entry("r", 1)}},
	})
	current := snap(2, map[string]snapshot.Depot{
		"1": {Manifests: snapshot.Manifests{"public": entry("a", 1), "added": entry("n", 1)}},
		"2": {Manifests: snapshot.Manifests{"public": entry("x", 1)}},
	})

	report := Compute(old, current)
	assert.Empty(t, report.DepotsNew)
	assert.Empty(t, report.DepotsOld)
}

func TestComputeExcludesRemovedDepot(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{
		"gone": {Manifests: snapshot.Manifests{"public": entry("a", 1)}},
		"kept": {Manifests: snapshot.Manifests{"public": entry("a", 1)}},
	})
	current := snap(2, map[string]snapshot.Depot{
		"kept": {Manifests: snapshot.Manifests{"public": entry("b", 1)}},
	})

	report := Compute(old, current)
	assert.NotContains(t, report.DepotsNew, "gone")
	assert.NotContains(t, report.DepotsOld, "gone")
	assert.Contains(t, report.DepotsNew, "kept")
}

func TestComputeNamespacesAreIndependent(t *testing.T) {
	// the same key moves from manifests to encryptedmanifests: no common key
	// within either namespace, so nothing is reported
	old := snap(1, map[string]snapshot.Depot{
		"1": {Manifests: snapshot.Manifests{"public": entry("a", 1)}},
	})
	current := snap(2, map[string]snapshot.Depot{
		"1": {EncryptedManifests: snapshot.Manifests{"public": entry("b", 1)}},
	})
	assert.Empty(t, Compute(old, current).DepotsNew)

	// a change in the encrypted namespace lands in the same depot bucket
	old = snap(1, map[string]snapshot.Depot{
		"1": {
			Manifests:          snapshot.Manifests{"public": entry("a", 1)},
			EncryptedManifests: snapshot.Manifests{"secret": entry("s1", 1)},
		},
	})
	current = snap(2, map[string]snapshot.Depot{
		"1": {
			Manifests:          snapshot.Manifests{"public": entry("b", 1)},
			EncryptedManifests: snapshot.Manifests{"secret": entry("s2", 1)},
		},
	})
	report := Compute(old, current)
	require.Contains(t, report.DepotsNew, "1")
	assert.Len(t, report.DepotsNew["1"], 2)
	assert.Equal(t, snapshot.StringValue("s1"), report.DepotsNew["1"]["secret"].OldGID)
}

func TestComputeSharedKeyResolvesToEncryptedEntry(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{
		"1": {
			Manifests:          snapshot.Manifests{"public": entry("plain-old", 1)},
			EncryptedManifests: snapshot.Manifests{"public": entry("enc-old", 2)},
		},
	})
	current := snap(2, map[string]snapshot.Depot{
		"1": {
			Manifests:          snapshot.Manifests{"public": entry("plain-new", 3)},
			EncryptedManifests: snapshot.Manifests{"public": entry("enc-new", 4)},
		},
	})

	report := Compute(old, current)
	require.Len(t, report.DepotsNew["1"], 1)
	got := report.DepotsNew["1"]["public"]
	assert.Equal(t, snapshot.StringValue("enc-new"), got.GID)
	assert.Equal(t, snapshot.StringValue("enc-old"), got.OldGID)
	assert.Equal(t, snapshot.Size(4), got.Size)
	assert.Equal(t, entry("enc-old", 2), report.DepotsOld["1"]["public"])

	// only the plain entry changed: it keeps the bucket slot
	current.Depots["1"].EncryptedManifests["public"] = entry("enc-old", 2)
	report = Compute(old, current)
	assert.Equal(t, snapshot.StringValue("plain-new"), report.DepotsNew["1"]["public"].GID)
	assert.Equal(t, entry("plain-old", 1), report.DepotsOld["1"]["public"])
}

func TestComputeFirstEncounter(t *testing.T) {
	current := snap(5, map[string]snapshot.Depot{
		"1": {Manifests: snapshot.Manifests{"public": entry("a", 1)}},
	})
	report := Compute(snapshot.Snapshot{}, current)
	assert.Equal(t, int64(5), report.LatestChangeNumber)
	assert.Equal(t, int64(0), report.OldChangeNumber)
	assert.False(t, report.HasChanges())
}

func TestComputeSerializationIsDeterministic(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{
		"3": {Manifests: snapshot.Manifests{"b": entry("1", 1), "a": entry("1", 1)}},
		"1": {Manifests: snapshot.Manifests{"b": entry("1", 1), "a": entry("1", 1)}},
	})
	current := snap(2, map[string]snapshot.Depot{
		"3": {Manifests: snapshot.Manifests{"b": entry("2", 1), "a": entry("2", 1)}},
		"1": {Manifests: snapshot.Manifests{"b": entry("2", 1), "a": entry("2", 1)}},
	})

	first, err := json.Marshal(Compute(old, current))
	require.NoError(t, err)
	for range 10 {
		again, err := json.Marshal(Compute(old, current))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
	assert.True(t, strings.Contains(string(first), `"old_gid":"1"`))
}

func TestUnified(t *testing.T) {
	old := snap(1, map[string]snapshot.Depot{"1": {Manifests: snapshot.Manifests{"public": entry("a", 1)}}})
	current := snap(2, map[string]snapshot.Depot{"1": {Manifests: snapshot.Manifests{"public": entry("b", 1)}}})

	patch, err := Unified(old, current, 0)
	require.NoError(t, err)
	assert.Contains(t, patch, "--- changenumber/1")
	assert.Contains(t, patch, "+++ changenumber/2")
	assert.Contains(t, patch, `-            "gid": "a",`)
	assert.Contains(t, patch, `+            "gid": "b",`)

	same, err := Unified(old, old, 0)
	require.NoError(t, err)
	assert.Empty(t, same)
}
