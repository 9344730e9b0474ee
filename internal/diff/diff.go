// Package diff computes change reports between two generations of a snapshot.
//
// Comparison is an intersection: only depots present in both generations, and
// only manifest keys present in both, are compared. Added or removed depots and
// manifest keys never appear in a report.
package diff

import "git.home.luguber.info/inful/depotwatch/internal/snapshot"

// Compute returns the manifest entries that differ between old and current.
// It is pure and total: every pair of snapshots yields a report.
func Compute(old, current snapshot.Snapshot) snapshot.ChangeReport {
	report := snapshot.NewChangeReport(current.ChangeNumber, old.ChangeNumber)

	for depotKey, oldDepot := range old.Depots {
		latestDepot, ok := current.Depots[depotKey]
		if !ok {
			continue
		}

		bucketNew := map[string]snapshot.ChangedManifest{}
		bucketOld := map[string]snapshot.ManifestEntry{}
		collect(oldDepot.Manifests, latestDepot.Manifests, bucketNew, bucketOld)
		collect(oldDepot.EncryptedManifests, latestDepot.EncryptedManifests, bucketNew, bucketOld)

		if len(bucketNew) == 0 {
			continue
		}
		report.DepotsNew[depotKey] = bucketNew
		report.DepotsOld[depotKey] = bucketOld
	}

	return report
}

// collect compares one manifest namespace. The two namespaces of a depot
// share a bucket, so a key present in both namespaces resolves to the
// encrypted entry when both changed.
func collect(old, latest snapshot.Manifests, bucketNew map[string]snapshot.ChangedManifest, bucketOld map[string]snapshot.ManifestEntry) {
	for key, latestEntry := range latest {
		oldEntry, ok := old[key]
		if !ok || oldEntry == latestEntry {
			continue
		}
		bucketNew[key] = snapshot.ChangedManifest{
			GID:      latestEntry.GID,
			Download: latestEntry.Download,
			Size:     latestEntry.Size,
			OldGID:   oldEntry.GID,
		}
		bucketOld[key] = oldEntry
	}
}
