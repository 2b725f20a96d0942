package scheduler

const (
	// JobTypeCommitTrigger runs the Commit Pipeline for a workspace: flush
	// pending CRDT updates to the History Store and compact the Update
	// Store per spec.md §4.10.
	JobTypeCommitTrigger = "diaryx.workspace.commit"
	// JobTypeHealthScan runs the Validator & Health Tracker's periodic
	// sweep (spec.md §4.9), surfacing degraded files for self-healing.
	JobTypeHealthScan = "diaryx.workspace.health_scan"
	// JobTypeRebuildScan checks whether a workspace's observed file count
	// has drifted enough from its last known-good commit to warrant an
	// automatic Rebuild (spec.md §4.11).
	JobTypeRebuildScan = "diaryx.workspace.rebuild_scan"
)

// CommitTriggerJobKey identifies the recurring commit job for a workspace.
func CommitTriggerJobKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":commit"
}

// HealthScanJobKey identifies the recurring health-tracker sweep for a
// workspace.
func HealthScanJobKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":health_scan"
}

// RebuildScanJobKey identifies the recurring rebuild-threshold check for a
// workspace.
func RebuildScanJobKey(workspaceID string) string {
	return "workspace:" + workspaceID + ":rebuild_scan"
}
