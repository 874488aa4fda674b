// Package cache implements a single-process, in-memory key–value cache
// with TTL expiry, LRU eviction and tag-based invalidation.
//
// Goals for this package:
//   - Make the core data structures explicit (map + doubly-linked list + tag index)
//   - Provide O(1) Set/Get/Delete via map index + LRU pointers
//   - Be concurrency-safe; every public call is atomic with respect to the others
//   - Support per-entry TTL with both lazy and active expiration
//   - Group related keys under tags so one write can drop all of them
//   - Own and cleanly stop the sweep goroutine (no leaks on shutdown)
//
// Expiry is lazy: Get and Has are the only calls that filter expired
// entries. Len, Keys and Stats report the structure as stored.
package cache
