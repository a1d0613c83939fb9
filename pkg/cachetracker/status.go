// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package cachetracker

import "fmt"

// KindSummary is the entry count and total size tracked for one
// EntryKind.
type KindSummary struct {
	Kind       EntryKind `json:"kind"`
	EntryCount int       `json:"entry_count"`
	TotalBytes int64     `json:"total_bytes"`
}

// Status is a read-only summary of everything the tracker currently
// knows about, across every kind, with no eviction performed.
type Status struct {
	Kinds      []KindSummary `json:"kinds"`
	EntryCount int           `json:"entry_count"`
	TotalBytes int64         `json:"total_bytes"`
}

// Status enumerates every tracked entry without evicting anything, the
// read-only counterpart to GC.
func (t *Tracker) Status() (Status, error) {
	if err := t.Flush(); err != nil {
		return Status{}, fmt.Errorf("flush before status: %w", err)
	}

	specs := []struct {
		kind  EntryKind
		table string
	}{
		{KindRegistryCrate, "registry_crate"},
		{KindRegistrySrc, "registry_src"},
		{KindGitDB, "git_db"},
		{KindGitCheckout, "git_checkout"},
	}

	var status Status
	for _, spec := range specs {
		entries, err := t.listByLastUse(spec.table, spec.kind)
		if err != nil {
			return Status{}, err
		}
		summary := KindSummary{Kind: spec.kind}
		for _, e := range entries {
			summary.EntryCount++
			summary.TotalBytes += e.Size
		}
		status.Kinds = append(status.Kinds, summary)
		status.EntryCount += summary.EntryCount
		status.TotalBytes += summary.TotalBytes
	}
	return status, nil
}
