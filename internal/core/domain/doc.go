// Package domain holds the core business types of the docq pipeline:
// documents, chunks, vector records, retrieval results and the
// pipeline error taxonomy. It has no dependencies on adapters.
package domain
