// Package gistcache renders externally hosted code snippets (gists) to HTML
// and caches the result in layers, so repeated page views avoid upstream
// calls and an upstream outage never breaks already published content.
//
// Sources, in the order a render consults them:
//   - rendered tier: ephemeral, keyed by the request hash (id, file and every
//     render option), holds final HTML or the UNKNOWN sentinel.
//   - raw tier: ephemeral, keyed by snippet (id + file), holds upstream markup
//     so one fetch serves many differently rendered views.
//   - Fetcher: one GET to the upstream JSON endpoint.
//   - durable store: last known good markup per owner and snippet, written
//     only after a successful fetch, read only when the fetch fails.
//
// Ephemeral keys:
//
//	html:<ns>:<request hash>   rendered output or sentinel
//	raw:<ns>:<id>[/<file>]     upstream markup
//	files:<ns>:<id>            file names of a gist (bookmark resolution)
//
// Every ephemeral write is guarded by a per-key generation (see genstore):
//
//	obs := generation(k)   // before fetch/render
//	v   := slowPath()
//	set(k, v, obs)         // dropped if k was invalidated meanwhile
package gistcache
