// Package memegen talks to the memegen.link template catalog and builds image URLs.
//
// It provides three pieces:
//   - Encode: the URL-path text encoding memegen expects for caption halves.
//   - Client: a thin HTTP client for GET /templates with retry on transient
//     upstream failures.
//   - Cache: a TTL snapshot cache over the catalog. Readers get either a fresh
//     snapshot or the last good one; a failing refresh never clobbers cached
//     data and never fails the caller.
//
// Image URLs are constructed client-side ({base}/images/{id}/{top}/{bottom}.png);
// the catalog endpoint is the only request this package ever makes.
package memegen
