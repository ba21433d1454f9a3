// Package retrieval serves decoded images out of archives.
//
// A retrieval names an archive, an entry inside it, and an optional target
// size. Sized requests are served from the thumbnail tier and full-size
// requests from the full tier; the two never share cache slots because the
// size variant is part of the cache key. On a miss the service reads the
// entry bytes through the shared handle pool, decodes them, stores the
// result in the matching tier and returns it.
//
// Requests can be submitted asynchronously to a bounded worker pool, with
// each response delivered exactly once on the results channel, or served
// synchronously through Get. Failures resolve the request with a typed
// error; nothing is cached on failure, so a corrupt entry is retried on the
// next request rather than poisoning the tier.
package retrieval
