// Package driving provides interfaces for primary/inbound ports: the
// operations the CLI (or any other entrypoint) invokes on the
// pipeline.
package driving
