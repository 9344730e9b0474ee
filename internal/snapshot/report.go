package snapshot

import (
	"cmp"
	"encoding/json"
	"slices"
)

// ChangedManifest is the new side of a changed manifest entry, carrying the
// previous gid alongside.
type ChangedManifest struct {
	GID      Value `json:"gid"`
	Download Value `json:"download"`
	Size     Size  `json:"size"`
	OldGID   Value `json:"old_gid"`
}

// ChangeReport lists the manifest entries that differ between two generations.
// DepotsNew and DepotsOld always carry the same depot and manifest keys.
type ChangeReport struct {
	LatestChangeNumber int64                                 `json:"latest"`
	OldChangeNumber    int64                                 `json:"old"`
	DepotsNew          map[string]map[string]ChangedManifest `json:"depots_new"`
	DepotsOld          map[string]map[string]ManifestEntry   `json:"depots_old"`
}

// Change is one flattened report entry.
type Change struct {
	Depot    string
	Manifest string
	New      ChangedManifest
	Old      ManifestEntry
}

// NewChangeReport returns an empty report for the given change numbers.
func NewChangeReport(latest, old int64) ChangeReport {
	return ChangeReport{
		LatestChangeNumber: latest,
		OldChangeNumber:    old,
		DepotsNew:          map[string]map[string]ChangedManifest{},
		DepotsOld:          map[string]map[string]ManifestEntry{},
	}
}

// HasChanges reports whether any manifest entry changed.
func (r ChangeReport) HasChanges() bool {
	return len(r.DepotsNew) > 0
}

// ChangeNumberChanged reports whether the two generations differ in change number.
func (r ChangeReport) ChangeNumberChanged() bool {
	return r.LatestChangeNumber != r.OldChangeNumber
}

// Count returns the number of changed manifest entries.
func (r ChangeReport) Count() int {
	n := 0
	for _, manifests := range r.DepotsNew {
		n += len(manifests)
	}
	return n
}

// Changes returns the report entries sorted by depot and manifest key.
func (r ChangeReport) Changes() []Change {
	out := make([]Change, 0, r.Count())
	for depot, manifests := range r.DepotsNew {
		for key, entry := range manifests {
			out = append(out, Change{
				Depot:    depot,
				Manifest: key,
				New:      entry,
				Old:      r.DepotsOld[depot][key],
			})
		}
	}
	slices.SortFunc(out, func(a, b Change) int {
		if c := cmp.Compare(a.Depot, b.Depot); c != 0 {
			return c
		}
		return cmp.Compare(a.Manifest, b.Manifest)
	})
	return out
}

// MarshalJSON always writes both depot maps, empty or not.
func (r ChangeReport) MarshalJSON() ([]byte, error) {
	type plain ChangeReport
	p := plain(r)
	if p.DepotsNew == nil {
		p.DepotsNew = map[string]map[string]ChangedManifest{}
	}
	if p.DepotsOld == nil {
		p.DepotsOld = map[string]map[string]ManifestEntry{}
	}
	return json.Marshal(p)
}
