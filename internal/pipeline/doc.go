// Package pipeline runs one acquisition-and-delivery session per conversation:
// catalog, resolution, acquisition, merge or transcode, sizing and delivery.
//
// Sessions are kept in a TTL store (github.com/patrickmn/go-cache); blocking
// work is offloaded to a bounded worker pool and awaited, and a progress
// monitor runs next to every long stage and is joined before the next one
// starts.
package pipeline
