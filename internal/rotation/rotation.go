// Package rotation decides when a tracked record advances a generation.
package rotation

import "git.home.luguber.info/inful/depotwatch/internal/snapshot"

// Rotate applies a freshly fetched snapshot to rec. When fetched equals the
// current generation the record is returned unchanged and rotated is false.
// Otherwise the current generation becomes old and fetched becomes current.
//
// A record advances at most one generation per call. On an uninitialized
// record the old generation stays empty.
func Rotate(fetched snapshot.Snapshot, rec snapshot.Record) (next snapshot.Record, rotated bool) {
	if fetched.Equal(rec.Current) {
		return rec, false
	}
	return snapshot.Record{Old: rec.Current, Current: fetched}, true
}
