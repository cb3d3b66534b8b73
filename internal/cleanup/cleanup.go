// Package cleanup implements C8: pruning exited backup containers and
// delegating to the engine's image prune, both skipped whenever a
// self-update is pending for the current cycle.
package cleanup

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/halvorsen/cuengine/internal/container"
)

var backupPattern = regexp.MustCompile(`^(.+)_bak_cu_(\d{8}-\d{6})$`)

const backupTimeLayout = "20060102-150405"

// Config mirrors config.Prune without creating an import dependency on
// internal/config.
type Config struct {
	RemoveOldContainers bool
	RemoveUnusedImages  bool
	MinBackupAge        time.Duration
	MinBackupsToKeep    int
}

// Result reports what the cleanup pass removed.
type Result struct {
	RemovedBackups []string
	RemovedImages  []string
}

// Run performs the backup-prune and image-prune passes. selfUpdatePending
// short-circuits both passes per §4.8 ("cleanup is skipped iff a
// self-update is pending for the current cycle").
func Run(ctx context.Context, d container.Driver, cfg Config, now time.Time, selfUpdatePending bool) (Result, error) {
	var result Result
	if selfUpdatePending {
		return result, nil
	}

	if cfg.RemoveOldContainers {
		removed, err := pruneBackups(ctx, d, cfg, now)
		if err != nil {
			return result, fmt.Errorf("pruning backup containers: %w", err)
		}
		result.RemovedBackups = removed
	}

	if cfg.RemoveUnusedImages {
		removed, err := d.PruneImages(ctx)
		if err != nil {
			return result, fmt.Errorf("pruning images: %w", err)
		}
		result.RemovedImages = removed
	}

	return result, nil
}

type backupEntry struct {
	id        string
	name      string
	original  string
	createdAt time.Time
}

// pruneBackups enumerates exited backup-marker containers, groups them
// by original container name, and removes those older than
// MinBackupAge while always keeping the MinBackupsToKeep newest per
// group — enforced even when a group's backups are all older than
// MinBackupAge (OQ2: minBackupsToKeep is a floor, not a suggestion).
func pruneBackups(ctx context.Context, d container.Driver, cfg Config, now time.Time) ([]string, error) {
	snapshots, err := d.List(ctx, container.ListFilters{Status: "exited"})
	if err != nil {
		return nil, err
	}

	groups := map[string][]backupEntry{}
	for _, s := range snapshots {
		m := backupPattern.FindStringSubmatch(s.Name)
		if m == nil {
			continue
		}
		ts, err := time.Parse(backupTimeLayout, m[2])
		if err != nil {
			continue
		}
		groups[m[1]] = append(groups[m[1]], backupEntry{id: s.ID, name: s.Name, original: m[1], createdAt: ts})
	}

	var removed []string
	keep := cfg.MinBackupsToKeep
	if keep < 0 {
		keep = 0
	}

	for _, entries := range groups {
		sort.Slice(entries, func(i, j int) bool { return entries[i].createdAt.After(entries[j].createdAt) })
		for i, e := range entries {
			if i < keep {
				continue
			}
			if now.Sub(e.createdAt) < cfg.MinBackupAge {
				continue
			}
			if err := d.Remove(ctx, e.id, true); err != nil {
				return removed, fmt.Errorf("removing backup %s: %w", e.name, err)
			}
			removed = append(removed, e.name)
		}
	}

	return removed, nil
}
