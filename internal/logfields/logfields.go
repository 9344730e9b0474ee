package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyIdentifier      = "identifier"
	KeyCycleID         = "cycle_id"
	KeyChangeNumber    = "change_number"
	KeyOldChangeNumber = "old_change_number"
	KeyDepot           = "depot"
	KeyManifest        = "manifest"
	KeyRotated         = "rotated"
	KeyChanges         = "changes"
	KeyDurationMS      = "duration_ms"
	KeyJobID           = "job_id"
	KeyBackend         = "backend"
	KeySubject         = "subject"
	KeyURL             = "url"
	KeyPath            = "path"
	KeyError           = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Identifier(id string) slog.Attr    { return slog.String(KeyIdentifier, id) }
func CycleID(id string) slog.Attr       { return slog.String(KeyCycleID, id) }
func ChangeNumber(n int64) slog.Attr    { return slog.Int64(KeyChangeNumber, n) }
func OldChangeNumber(n int64) slog.Attr { return slog.Int64(KeyOldChangeNumber, n) }
func Depot(key string) slog.Attr        { return slog.String(KeyDepot, key) }
func Manifest(key string) slog.Attr     { return slog.String(KeyManifest, key) }
func Rotated(b bool) slog.Attr          { return slog.Bool(KeyRotated, b) }
func Changes(n int) slog.Attr           { return slog.Int(KeyChanges, n) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func JobID(id string) slog.Attr         { return slog.String(KeyJobID, id) }
func Backend(name string) slog.Attr     { return slog.String(KeyBackend, name) }
func Subject(s string) slog.Attr        { return slog.String(KeySubject, s) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
