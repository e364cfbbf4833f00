package moodle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/coursebridge/internal/core/domain"
)

// Reconciler brings a course's sections in line with an ordered unit list.
//
// Sections are identified by ordinal: unit i (1-based) maps to section i.
// Section 0 is Moodle's general section and is never touched. Sections past
// the last unit are left alone; nothing is ever deleted or hidden.
//
// The web-service API is not transactional, so the steps run in a fixed order:
//  1. Fetch current sections and diff them against the units
//  2. Add missing sections (one call each, absolute-count fallback)
//  3. Re-fetch, since new sections have no id until created
//  4. Rename by remote id
//  5. Re-fetch and show hidden sections
//  6. Re-fetch once more if anything was attempted, then derive the result
//
// Every call in steps 2, 4 and 5 is isolated: a failure is recorded in the
// returned operations and the loop moves on.
type Reconciler struct {
	api    SectionAPI
	logger *slog.Logger
}

// NewReconciler creates a reconciler over the given section API.
func NewReconciler(api SectionAPI, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{api: api, logger: logger}
}

// Diff compares observed sections with the desired units.
// Unit i is compared against the section at ordinal i+1.
func Diff(sections []domain.SectionState, units []domain.ExportUnit) domain.SectionSync {
	byOrdinal := indexByOrdinal(sections)

	var diff domain.SectionSync
	for i, unit := range units {
		ordinal := i + 1
		sec, ok := byOrdinal[ordinal]
		if !ok {
			diff.ToCreate = append(diff.ToCreate, ordinal)
			continue
		}

		changed := false
		if sec.Name != unit.Name {
			diff.ToRename = append(diff.ToRename, domain.SectionRename{
				ID:          sec.ID,
				Ordinal:     ordinal,
				CurrentName: sec.Name,
				NewName:     unit.Name,
			})
			changed = true
		}
		if !sec.Visible {
			diff.ToShow = append(diff.ToShow, sec.ID)
			changed = true
		}
		if !changed {
			diff.Unchanged = append(diff.Unchanged, sec.ID)
		}
	}
	return diff
}

// Reconcile runs one reconciliation pass for a course.
// The error is non-nil only when the initial fetch or the final fetch fails.
func (r *Reconciler) Reconcile(ctx context.Context, courseID string, units []domain.ExportUnit) (*domain.StructureSync, error) {
	sections, err := r.api.GetSections(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("fetch sections: %w", err)
	}

	diff := Diff(sections, units)
	result := &domain.StructureSync{}

	if diff.IsNoop() {
		r.logger.Debug("moodle sections already converged",
			"course_id", courseID,
			"units", len(units),
		)
		result.Elements = deriveElements(sections, units)
		return result, nil
	}

	r.logger.Info("reconciling moodle sections",
		"course_id", courseID,
		"to_create", len(diff.ToCreate),
		"to_rename", len(diff.ToRename),
		"to_show", len(diff.ToShow),
		"unchanged", len(diff.Unchanged),
	)

	if len(diff.ToCreate) > 0 {
		result.Operations = append(result.Operations,
			r.addMissing(ctx, courseID, countManaged(sections), len(units))...)

		if fresh, err := r.api.GetSections(ctx, courseID); err != nil {
			r.logger.Warn("re-fetch after adding sections failed, renaming known sections only",
				"course_id", courseID,
				"error", err,
			)
		} else {
			sections = fresh
		}
	}

	result.Operations = append(result.Operations, r.renameAll(ctx, courseID, sections, units)...)

	if fresh, err := r.api.GetSections(ctx, courseID); err != nil {
		r.logger.Warn("re-fetch before visibility pass failed, using previous state",
			"course_id", courseID,
			"error", err,
		)
	} else {
		sections = fresh
	}
	result.Operations = append(result.Operations, r.showHidden(ctx, courseID, sections, len(units))...)

	if len(result.Operations) > 0 {
		sections, err = r.api.GetSections(ctx, courseID)
		if err != nil {
			return nil, fmt.Errorf("final fetch sections: %w", err)
		}
	}

	result.Elements = deriveElements(sections, units)

	if failed := result.Failed(); len(failed) > 0 {
		r.logger.Warn("moodle reconciliation finished with failures",
			"course_id", courseID,
			"operations", len(result.Operations),
			"failed", len(failed),
		)
	}
	return result, nil
}

// addMissing grows the course from current to desired sections, one add per
// missing ordinal. A failed add falls back to setting the absolute count, but
// only a re-fetch decides whether the remaining adds can be skipped: courses
// in formats without numsections accept the call and create nothing.
func (r *Reconciler) addMissing(ctx context.Context, courseID string, current, desired int) []domain.OperationResult {
	var ops []domain.OperationResult

	have := current
	for ordinal := current + 1; ordinal <= desired; ordinal++ {
		if have >= ordinal {
			continue
		}

		err := r.api.AddSection(ctx, courseID)
		ops = append(ops, domain.NewOperationResult(domain.OpAddSection, ordinal, "", err))
		if err == nil {
			have++
			continue
		}

		r.logger.Warn("add section failed, falling back to section count",
			"course_id", courseID,
			"ordinal", ordinal,
			"error", err,
		)

		err = r.api.SetSectionCount(ctx, courseID, desired)
		ops = append(ops, domain.NewOperationResult(domain.OpSetSectionCount, desired, "", err))
		if err != nil {
			r.logger.Warn("set section count failed",
				"course_id", courseID,
				"count", desired,
				"error", err,
			)
			continue
		}

		fresh, err := r.api.GetSections(ctx, courseID)
		if err != nil {
			r.logger.Warn("re-fetch after set section count failed",
				"course_id", courseID,
				"error", err,
			)
			continue
		}
		have = countManaged(fresh)
	}
	return ops
}

// renameAll renames every managed section whose name differs from its unit.
func (r *Reconciler) renameAll(ctx context.Context, courseID string, sections []domain.SectionState, units []domain.ExportUnit) []domain.OperationResult {
	byOrdinal := indexByOrdinal(sections)

	var ops []domain.OperationResult
	for i, unit := range units {
		ordinal := i + 1
		sec, ok := byOrdinal[ordinal]
		if !ok {
			r.logger.Warn("section missing after add, skipping rename",
				"course_id", courseID,
				"ordinal", ordinal,
			)
			continue
		}
		if sec.Name == unit.Name {
			continue
		}

		err := r.api.RenameSection(ctx, sec.ID, unit.Name)
		ops = append(ops, domain.NewOperationResult(domain.OpRenameSection, ordinal, sec.ID, err))
		if err != nil {
			r.logger.Warn("rename section failed",
				"course_id", courseID,
				"section_id", sec.ID,
				"ordinal", ordinal,
				"error", err,
			)
		}
	}
	return ops
}

// showHidden shows every hidden section in ordinals 1..count.
func (r *Reconciler) showHidden(ctx context.Context, courseID string, sections []domain.SectionState, count int) []domain.OperationResult {
	var ops []domain.OperationResult
	for _, sec := range sections {
		if sec.Visible || sec.Ordinal < 1 || sec.Ordinal > count {
			continue
		}

		err := r.api.ShowSection(ctx, sec.ID)
		ops = append(ops, domain.NewOperationResult(domain.OpShowSection, sec.Ordinal, sec.ID, err))
		if err != nil {
			r.logger.Warn("show section failed",
				"course_id", courseID,
				"section_id", sec.ID,
				"ordinal", sec.Ordinal,
				"error", err,
			)
		}
	}
	return ops
}

// deriveElements maps units to the sections at their ordinals.
// If an ordinal is absent, the section at the same array index is used.
func deriveElements(sections []domain.SectionState, units []domain.ExportUnit) []domain.RemoteStructureElement {
	byOrdinal := indexByOrdinal(sections)

	elements := make([]domain.RemoteStructureElement, 0, len(units))
	for i := range units {
		ordinal := i + 1
		sec, ok := byOrdinal[ordinal]
		if !ok {
			if ordinal >= len(sections) {
				continue
			}
			sec = sections[ordinal]
		}
		elements = append(elements, domain.RemoteStructureElement{
			ID:       sec.ID,
			Name:     sec.Name,
			Position: ordinal,
		})
	}
	return elements
}

func indexByOrdinal(sections []domain.SectionState) map[int]domain.SectionState {
	m := make(map[int]domain.SectionState, len(sections))
	for _, s := range sections {
		m[s.Ordinal] = s
	}
	return m
}

// countManaged counts sections that can hold a unit (ordinal 1 and up).
func countManaged(sections []domain.SectionState) int {
	n := 0
	for _, s := range sections {
		if s.Ordinal >= 1 {
			n++
		}
	}
	return n
}
