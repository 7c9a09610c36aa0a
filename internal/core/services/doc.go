// Package services implements the core pipeline: chunk ingestion and
// embedding, the query-embedding cache, retrieval orchestration,
// prompt building and the multi-store deletion protocol. Services
// depend only on domain types and driven ports.
package services
