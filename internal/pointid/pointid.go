// Package pointid derives deterministic vector point IDs for document chunks.
package pointid

import (
	"strconv"

	"github.com/google/uuid"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/hyperjump/scout/chunk"))

// ChunkID returns the point ID for chunk index of docID. The same pair always
// yields the same UUID, so re-ingesting a document overwrites its points.
func ChunkID(docID string, index int) string {
	return uuid.NewSHA1(namespace, []byte(docID+":"+strconv.Itoa(index))).String()
}

// ChunkIDs returns the point IDs for chunks 0..n-1 of docID.
func ChunkIDs(docID string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = ChunkID(docID, i)
	}
	return ids
}
