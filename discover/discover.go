// Package discover provides worker presence registration and discovery
// backed by etcd.
//
// Remote tool workers register themselves on startup, maintain presence via
// lease keepalives, and deregister on graceful shutdown. Brokers query the
// registry to learn which tools have live workers before dispatching to a
// queue, which turns a would-be queue timeout into an immediate
// UPSTREAM_UNAVAILABLE answer.
package discover

import (
	"context"
	"time"
)

// WorkerInfo describes a registered worker instance.
//
// Each worker process hosts one tool and registers a WorkerInfo entry with
// a unique InstanceID, so multiple workers for the same tool can run
// concurrently.
type WorkerInfo struct {
	// Tool is the name of the tool this worker hosts.
	Tool string `json:"tool"`

	// Version is the semantic version of the tool implementation.
	Version string `json:"version"`

	// InstanceID uniquely identifies this worker instance (typically the
	// worker ID generated at startup).
	InstanceID string `json:"instance_id"`

	// Endpoint is the network address where this worker can be reached,
	// if it exposes one. Queue-only workers may leave it empty.
	Endpoint string `json:"endpoint,omitempty"`

	// Metadata carries worker-specific attributes such as concurrency or
	// supported argument schema version.
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is the timestamp when this instance started.
	StartedAt time.Time `json:"started_at"`
}

// Registry defines the worker registration and discovery interface.
//
// Implementations must be safe for concurrent use. Entries are tied to
// etcd leases with a TTL so crashed workers disappear automatically.
type Registry interface {
	// Register adds this worker instance to the registry. The entry stays
	// visible as long as the lease is renewed; a background goroutine
	// renews it every TTL/3. Re-registering the same InstanceID replaces
	// the existing entry.
	Register(ctx context.Context, info WorkerInfo) error

	// Deregister removes this worker instance from the registry by
	// revoking its lease. Deregistering an unknown instance is a no-op.
	Deregister(ctx context.Context, info WorkerInfo) error

	// Discover returns all live worker instances for a tool. The slice
	// may be empty when no workers are registered.
	Discover(ctx context.Context, tool string) ([]WorkerInfo, error)

	// DiscoverAll returns all live worker instances across every tool.
	DiscoverAll(ctx context.Context) ([]WorkerInfo, error)

	// Watch returns a channel that receives the current worker list for a
	// tool whenever it changes. The initial state is sent immediately.
	// The channel closes when ctx is cancelled or the registry is closed.
	Watch(ctx context.Context, tool string) (<-chan []WorkerInfo, error)

	// Close releases registry resources and stops background goroutines.
	Close() error
}

// Config holds etcd connection configuration for the worker registry.
type Config struct {
	// Endpoints is the list of etcd endpoints, e.g. ["host1:2379"].
	Endpoints []string `json:"endpoints"`

	// Namespace is the etcd key prefix for all worker entries.
	// Entries are stored under /{namespace}/tools/{tool}/{instance-id}.
	// Default: "toolmesh"
	Namespace string `json:"namespace"`

	// TTL is the lease time-to-live in seconds. Workers must renew within
	// this interval or be removed.
	// Default: 30
	TTL int `json:"ttl"`

	// TLS holds optional TLS configuration for secured clusters.
	TLS *TLSConfig `json:"tls"`
}

// TLSConfig holds TLS certificate configuration for secure etcd
// communication using mutual TLS.
type TLSConfig struct {
	// Enabled determines whether TLS is active. If false, the remaining
	// fields are ignored.
	Enabled bool `json:"enabled"`

	// CertFile is the path to the client certificate file (PEM format).
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the client private key file (PEM format).
	KeyFile string `json:"key_file"`

	// CAFile is the path to the certificate authority file (PEM format)
	// used to verify the etcd server's certificate.
	CAFile string `json:"ca_file"`
}
