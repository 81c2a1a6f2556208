// cmd/codeindex/snapshot.go
package main

import (
	"fmt"
	"time"

	"github.com/codeintel/codeindex/internal/changedetect"
)

// nextSnapshotID derives a new snapshot id from the repo's current git HEAD
// plus a timestamp, so two indexing runs against the same commit still get
// distinct ids (the relational store's snapshot table is append-only, per
// internal/relstore's soft-delete audit trail).
func nextSnapshotID(repoPath string) string {
	head, err := changedetect.HeadHash(repoPath)
	if err != nil || head == "" {
		head = "working"
	}
	if len(head) > 12 {
		head = head[:12]
	}
	return fmt.Sprintf("%s-%d", head, time.Now().Unix())
}
