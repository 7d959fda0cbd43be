// Package server exposes the mirrored tree over HTTP. It is a thin read-only
// surface: every request path is resolved under the active backend's web root
// and answered through the storage capability interface, so the same handler
// works for any registered backend. Destructive or mutating operations are
// deliberately absent from this surface.
package server
