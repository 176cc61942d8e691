package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"go.trai.ch/hearth/internal/app"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/ui/output"
	"go.trai.ch/hearth/internal/ui/style"
)

const timeLayout = "2006-01-02 15:04:05Z07:00"

// printer renders command results either as indented JSON or as coloured text.
type printer struct {
	w   io.Writer
	out *termenv.Output
}

func (c *CLI) printer(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	return &printer{w: w, out: output.New(w)}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) paint(s string, c lipgloss.Color) string {
	return p.out.String(s).Foreground(termenv.RGBColor(string(c))).String()
}

func (p *printer) line(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (c *CLI) printInstall(cmd *cobra.Command, verb string, r domain.InstallResult) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		return p.json(r)
	}
	p.line("%s %s complete: %d artifacts satisfied", p.paint(style.Check, style.Green), verb, r.SatisfiedCount)
	p.line("  fetched %d, resumed %d, quarantined %d", r.FetchedCount, r.ResumedCount, r.QuarantinedCount)
	p.line("  recovery state %s", r.Recovery)
	if r.LockfileGenerated {
		p.line("  lockfile generated")
	}
	if r.SnapshotID != "" {
		p.line("  snapshot %s", r.SnapshotID)
	}
	if r.Progress != nil {
		p.line("  progress %s", progressLine(r.Progress))
	}
	return nil
}

func progressLine(s *domain.ProgressSummary) string {
	return fmt.Sprintf("%d tracked, %d completed, %d cached, %d failed", s.Tracked, s.Completed, s.Cached, s.Failed)
}

func (c *CLI) printRolledBack(cmd *cobra.Command, id string) {
	p := c.printer(cmd)
	if c.jsonOutput {
		_ = p.json(map[string]string{"rolledBackTo": id})
		return
	}
	p.line("%s install failed; rolled back to snapshot %s", p.paint(style.Warning, style.Yellow), id)
}

func (c *CLI) printStatus(cmd *cobra.Command, r *domain.DiffReport) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		return p.json(r)
	}
	p.line("%s %s %s (version %s)", style.Heading("instance"), r.PackID, r.PackVersion, r.PinnedVersionID)
	for _, a := range r.Artifacts {
		if a.State == domain.StateSatisfied {
			continue
		}
		icon := p.paint(style.Icon(a.State), style.Color(a.State))
		p.line("  %s %s %s (%s)", icon, a.State, a.Name, a.RelativePath)
	}
	p.line("  satisfied %d, missing %d, mismatched %d, unsupported %d, staged %d",
		r.Satisfied, r.Missing, r.Mismatched, r.Unsupported, r.Staged)
	if len(r.Untracked) > 0 {
		p.line("  untracked: %s", strings.Join(r.Untracked, ", "))
	}
	if r.LastRun != nil {
		p.line("  last run: %s", progressLine(r.LastRun))
	}
	if r.Complete() {
		p.line("%s up to date", p.paint(style.Check, style.Green))
	} else {
		p.line("%s run 'hearth install' to reconcile", p.paint(style.Dot, style.Ember))
	}
	return nil
}

func (c *CLI) printRollback(cmd *cobra.Command, r domain.RollbackResult) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		return p.json(r)
	}
	p.line("%s rolled back to snapshot %s", p.paint(style.Check, style.Green), r.SnapshotID)
	p.line("  restored %d, unchanged %d, quarantined %d", r.RestoredCount, r.UnchangedCount, r.QuarantinedCount)
	return nil
}

func (c *CLI) printSnapshots(cmd *cobra.Command, snaps []domain.Snapshot) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		if snaps == nil {
			snaps = []domain.Snapshot{}
		}
		return p.json(snaps)
	}
	if len(snaps) == 0 {
		p.line("no snapshots recorded")
		return nil
	}
	p.line("%s", style.Heading("snapshots"))
	for i, s := range snaps {
		marker := style.Circle
		if i == 0 {
			marker = style.Dot
		}
		p.line("  %s %s  %s  %s %s  %d files", p.paint(marker, style.Ember), s.ID,
			s.CreatedAt.Format(timeLayout), s.PackID, s.PackVersion, len(s.Artifacts))
	}
	return nil
}

func (c *CLI) printQuarantine(cmd *cobra.Command, entries []domain.QuarantineEntry) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		if entries == nil {
			entries = []domain.QuarantineEntry{}
		}
		return p.json(entries)
	}
	if len(entries) == 0 {
		p.line("quarantine is empty")
		return nil
	}
	p.line("%s", style.Heading("quarantine"))
	for _, e := range entries {
		p.line("  %s %s  %s  %s", p.paint(style.Cross, style.Red), e.Record.QuarantinedAt.Format(timeLayout),
			e.Record.RelativePath, e.Record.Reason)
		p.line("      expected %s observed %s", e.Record.Expected, e.Record.Observed)
	}
	return nil
}

func (c *CLI) printLockfile(cmd *cobra.Command, lock *domain.Lockfile) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		return p.json(map[string]any{
			"packId":          lock.PackID,
			"packVersion":     lock.PackVersion,
			"pinnedVersionId": lock.PinnedVersionID,
			"artifacts":       len(lock.Artifacts),
		})
	}
	p.line("%s lockfile regenerated: %s %s pins %s with %d artifacts", p.paint(style.Check, style.Green),
		lock.PackID, lock.PackVersion, lock.PinnedVersionID, len(lock.Artifacts))
	p.line("  run 'hearth install' to apply it")
	return nil
}

func (c *CLI) printClean(cmd *cobra.Command, r app.CleanResult) error {
	p := c.printer(cmd)
	if c.jsonOutput {
		return p.json(r)
	}
	p.line("%s removed %d staged entries, %d snapshots, %d quarantine entries",
		p.paint(style.Check, style.Green), r.Staged, r.Snapshots, r.Quarantined)
	return nil
}
