// SPDX-License-Identifier: MPL-2.0

package migrate

import (
	"context"
	"fmt"
	"os"
	"time"

	"hassctl/internal/issue"
	"hassctl/internal/registry"

	"github.com/charmbracelet/log"
)

type (
	// Transport is the file transfer and remote command surface the
	// workflow needs from an SSH connection.
	Transport interface {
		FetchBytes(remotePath string) ([]byte, error)
		PushBytes(data []byte, remotePath string) error
		SudoMove(src, dst string) error
		Reboot()
	}

	// Stopper shuts Home Assistant down before the registry file is
	// rewritten underneath it.
	Stopper interface {
		Stop(ctx context.Context) error
		WaitForStop(ctx context.Context) error
	}

	// BackupStore persists a registry snapshot before anything changes.
	BackupStore interface {
		Create(data []byte) (*registry.Backup, error)
	}

	// Workflow runs the stop-rewrite-reboot sequence against a live
	// Home Assistant host.
	Workflow struct {
		Transport Transport
		Stopper   Stopper
		Backups   BackupStore

		// RegistryPath is the registry file on the remote host.
		RegistryPath string
		// StagingPath receives the rewritten registry before the
		// privileged move; defaults to /tmp/registry_updated.json.
		StagingPath string
		// StopTimeout bounds WaitForStop; defaults to 60s.
		StopTimeout time.Duration
		// SettleDelay is the pause after HA stops, giving it time to
		// flush state to disk; defaults to 5s.
		SettleDelay time.Duration

		Logger *log.Logger
	}

	// Report describes a completed workflow run.
	Report struct {
		Backup *registry.Backup
		// Remap is set by Execute runs.
		Remap *registry.RemapResult
		// Merge is set by FixRegistry runs.
		Merge *registry.MergeResult
	}
)

const (
	defaultStagingPath = "/tmp/registry_updated.json"
	defaultStopTimeout = 60 * time.Second
	defaultSettleDelay = 5 * time.Second
)

func (w *Workflow) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}

func (w *Workflow) stagingPath() string {
	if w.StagingPath != "" {
		return w.StagingPath
	}
	return defaultStagingPath
}

// Execute rewrites unique_ids per mapping: backup, stop HA, fetch the
// registry, remap, upload, move into place, reboot. Failures before the
// upload leave the host untouched apart from being stopped.
func (w *Workflow) Execute(ctx context.Context, mapping map[string]string) (*Report, error) {
	return w.run(ctx, func(reg *registry.Registry, report *Report) {
		remap := reg.RemapUniqueIDs(mapping)
		report.Remap = &remap
		for _, c := range remap.Changes {
			w.logger().Info("remapped", "entity_id", c.EntityID, "old", c.OldUniqueID, "new", c.NewUniqueID)
		}
	})
}

// FixRegistry merges _2 duplicates into their originals using the same
// stop-rewrite-reboot sequence.
func (w *Workflow) FixRegistry(ctx context.Context) (*Report, error) {
	return w.run(ctx, func(reg *registry.Registry, report *Report) {
		merge := reg.MergeDuplicates()
		report.Merge = &merge
		for _, c := range merge.Changes {
			w.logger().Info("merged duplicate", "entity_id", c.EntityID, "old", c.OldUniqueID, "new", c.NewUniqueID)
		}
	})
}

func (w *Workflow) run(ctx context.Context, mutate func(*registry.Registry, *Report)) (*Report, error) {
	logger := w.logger()
	report := &Report{}

	logger.Info("creating backup")
	data, err := w.Transport.FetchBytes(w.RegistryPath)
	if err != nil {
		return nil, issue.WrapWithContext(err, "fetch registry", w.RegistryPath)
	}
	backup, err := w.Backups.Create(data)
	if err != nil {
		return nil, err
	}
	report.Backup = backup
	logger.Info("backup created", "path", backup.Path, "entities", backup.Entities)

	logger.Info("stopping Home Assistant")
	if err := w.Stopper.Stop(ctx); err != nil {
		return report, err
	}

	stopTimeout := w.StopTimeout
	if stopTimeout == 0 {
		stopTimeout = defaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := w.Stopper.WaitForStop(stopCtx); err != nil {
		return report, issue.NewErrorContext().
			WithOperation("wait for Home Assistant to stop").
			WithSuggestion("Check the instance; it may still be shutting down").
			WithSuggestion("Nothing was changed yet; the backup is safe to discard").
			Wrap(err).
			BuildError()
	}

	// Give HA time to flush its final registry state to disk.
	settle := w.SettleDelay
	if settle == 0 {
		settle = defaultSettleDelay
	}
	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return report, ctx.Err()
	}

	logger.Info("rewriting registry")
	data, err = w.Transport.FetchBytes(w.RegistryPath)
	if err != nil {
		return report, issue.WrapWithContext(err, "fetch registry", w.RegistryPath)
	}
	reg, err := registry.Parse(data)
	if err != nil {
		return report, issue.WrapWithContext(err, "parse registry", w.RegistryPath)
	}

	mutate(reg, report)

	out, err := reg.Encode()
	if err != nil {
		return report, err
	}

	staging := w.stagingPath()
	if err := w.Transport.PushBytes(out, staging); err != nil {
		return report, issue.WrapWithContext(err, "upload registry", staging)
	}
	if err := w.Transport.SudoMove(staging, w.RegistryPath); err != nil {
		return report, issue.NewErrorContext().
			WithOperation("install rewritten registry").
			WithResource(w.RegistryPath).
			WithSuggestion(fmt.Sprintf("The rewritten file is staged at %s on the host; move it manually or restore the backup %s", staging, report.Backup.Path)).
			Wrap(err).
			BuildError()
	}

	logger.Info("rebooting Home Assistant")
	w.Transport.Reboot()
	return report, nil
}

// FixFile merges _2 duplicates in a local registry file in place. A
// timestamped copy is written next to the file before it is modified.
func FixFile(path string, now func() time.Time) (*Report, error) {
	if now == nil {
		now = time.Now
	}

	original, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.WrapWithContext(err, "read registry", path)
	}
	reg, err := registry.Parse(original)
	if err != nil {
		return nil, issue.WrapWithContext(err, "parse registry", path)
	}

	// Copy the original bytes aside before touching the file.
	backupPath := fmt.Sprintf("%s.backup.%s", path, now().Format(registry.TimestampLayout))
	if err := os.WriteFile(backupPath, original, 0o600); err != nil {
		return nil, issue.WrapWithContext(err, "write pre-fix backup", backupPath)
	}

	merge := reg.MergeDuplicates()
	if err := reg.WriteFile(path); err != nil {
		return nil, err
	}

	return &Report{
		Backup: &registry.Backup{Path: backupPath, Entities: len(reg.Entities), Valid: true},
		Merge:  &merge,
	}, nil
}
