// Package resolver turns heterogeneous recognition payloads into a single
// canonical scan read-model. Resolver operations are pure: they do no I/O,
// never log and never mutate their inputs. Only blocklist loading touches
// the filesystem.
package resolver

import "strainscan/internal"

// UnknownStrainName is the display name used when no identity could be
// resolved.
const UnknownStrainName = "Cannabis (strain unknown)"

// Resolver binds the resolver operations to one set of blocklists.
type Resolver struct {
	lists Blocklists
}

func New(lists Blocklists) *Resolver {
	return &Resolver{lists: lists}
}

func (r *Resolver) Blocklists() Blocklists {
	return r.lists
}

var defaultResolver = New(DefaultBlocklists())

// Default returns the resolver backed by the embedded blocklists.
func Default() *Resolver {
	return defaultResolver
}

func Clean(raw string) (string, bool) {
	return defaultResolver.Clean(raw)
}

func ExtractName(rawText string) (string, bool) {
	return defaultResolver.ExtractName(rawText)
}

func Resolve(scan *internal.RawScanRecord) Resolution {
	return defaultResolver.Resolve(scan)
}

func Normalize(scan *internal.RawScanRecord) *internal.NormalizedScanResult {
	return defaultResolver.Normalize(scan)
}
