// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): embedding providers, the vector store,
// document metadata storage, blob storage, the query cache and the
// chat model.
package driven
