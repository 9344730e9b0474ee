// Package snapshot defines the versioned hierarchical state tracked by depotwatch.
//
// A Snapshot is the full state of one tracked identifier at one generation: a
// change number plus a set of depots, each holding two independent manifest
// namespaces (manifests and encryptedmanifests). A Record pairs the previous
// and current generations, and a ChangeReport describes the manifest entries
// that differ between them.
//
// Decoding is tolerant: absent containers become empty maps and depot values
// that are not objects are ignored. It is never lenient about the change
// number, which must be present.
package snapshot
