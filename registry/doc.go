// Package registry provides the in-process tool registry for the broker.
//
// The registry maps tool names to Tool implementations. It is built once
// at process startup, before any invocation is accepted, and is treated as
// read-only for the lifetime of a serving session. Duplicate names are
// rejected at registration so every descriptor is uniquely identified by
// its name string.
//
// Access is guarded by an RWMutex: invocations only take read locks, so
// concurrent dispatch never contends, while a deployment that registers
// tools late remains safe.
package registry
