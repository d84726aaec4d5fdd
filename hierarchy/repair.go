package hierarchy

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskhub/logging"
	"taskhub/models"
)

// RepairReport summarises one repair pass. Skipped counts fixes left for
// a later pass because the record changed after it was read.
type RepairReport struct {
	Owners            int `json:"owners"`
	Checked           int `json:"checked"`
	AncestorsCleared  int `json:"ancestors_cleared"`
	CyclesBroken      int `json:"cycles_broken"`
	ChildrenRewritten int `json:"children_rewritten"`
	Skipped           int `json:"skipped"`
}

func (r *RepairReport) add(o RepairReport) {
	r.Owners += o.Owners
	r.Checked += o.Checked
	r.AncestorsCleared += o.AncestorsCleared
	r.CyclesBroken += o.CyclesBroken
	r.ChildrenRewritten += o.ChildrenRewritten
	r.Skipped += o.Skipped
}

// Clean reports whether the pass found nothing to fix.
func (r RepairReport) Clean() bool {
	return r.AncestorsCleared == 0 && r.CyclesBroken == 0 && r.ChildrenRewritten == 0 && r.Skipped == 0
}

// Repair restores the tree invariants for one owner after interrupted or
// racing writes. Ancestor pointers are authoritative: dangling and
// self-referencing ancestors are cleared, cycles are broken, and every
// children list is rewritten to exactly the projects pointing at it,
// keeping the existing order for entries that stay.
//
// Every write touches a single field and only applies while that field
// still holds the value read at the start of the pass, so requests
// running alongside the repair are never reverted.
func (s *Service) Repair(ctx context.Context, owner uuid.UUID) (*RepairReport, error) {
	start := time.Now()
	report := &RepairReport{Owners: 1}

	all, err := s.store.FindProjects(ctx, owner, models.ProjectFilter{})
	if err != nil {
		return nil, wrapStoreErr("load projects", err)
	}
	report.Checked = len(all)

	byID := make(map[uuid.UUID]*models.Project, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	clearAncestor := func(p *models.Project) (bool, error) {
		cleared, err := s.store.ClearAncestor(ctx, owner, p.ID, *p.Ancestor)
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, wrapStoreErr("clear ancestor", err)
		}
		if cleared {
			p.Ancestor = nil
		}
		return cleared, nil
	}

	for i := range all {
		p := &all[i]
		if p.Ancestor == nil {
			continue
		}
		if _, ok := byID[*p.Ancestor]; ok && *p.Ancestor != p.ID {
			continue
		}
		cleared, err := clearAncestor(p)
		if err != nil {
			return report, err
		}
		if !cleared {
			report.Skipped++
			continue
		}
		report.AncestorsCleared++
	}

	for i := range all {
		if !onCycle(&all[i], byID) {
			continue
		}
		cleared, err := clearAncestor(&all[i])
		if err != nil {
			return report, err
		}
		if !cleared {
			report.Skipped++
			continue
		}
		report.CyclesBroken++
	}

	expected := make(map[uuid.UUID][]uuid.UUID, len(all))
	for _, p := range all {
		if p.Ancestor != nil {
			expected[*p.Ancestor] = append(expected[*p.Ancestor], p.ID)
		}
	}

	for i := range all {
		p := &all[i]
		want := mergeChildren(p.Children, expected[p.ID], byID)
		if equalIDs(p.Children, want) {
			continue
		}
		applied, err := s.store.SetChildren(ctx, owner, p.ID, p.Children, want)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return report, wrapStoreErr("rewrite children", err)
		}
		if !applied {
			report.Skipped++
			continue
		}
		p.Children = want
		report.ChildrenRewritten++
	}

	logging.Logger.WithFields(logrus.Fields{
		"owner":              owner,
		"checked":            report.Checked,
		"ancestors_cleared":  report.AncestorsCleared,
		"cycles_broken":      report.CyclesBroken,
		"children_rewritten": report.ChildrenRewritten,
		"skipped":            report.Skipped,
		"duration":           time.Since(start),
	}).Info("Repaired project hierarchy")

	return report, nil
}

// RepairAll runs Repair for every owner. A failing owner does not stop
// the others; their errors are joined.
func (s *Service) RepairAll(ctx context.Context) (*RepairReport, error) {
	owners, err := s.store.Owners(ctx)
	if err != nil {
		return nil, wrapStoreErr("list owners", err)
	}

	total := &RepairReport{}
	var errs []error
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r, err := s.Repair(ctx, owner)
		if r != nil {
			total.add(*r)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// onCycle reports whether following ancestors from p leads back to p.
func onCycle(p *models.Project, byID map[uuid.UUID]*models.Project) bool {
	steps := 0
	for next := p.Ancestor; next != nil && steps <= len(byID); steps++ {
		if *next == p.ID {
			return true
		}
		n, ok := byID[*next]
		if !ok {
			return false
		}
		next = n.Ancestor
	}
	return false
}

// mergeChildren keeps the entries of current that belong, in order, and
// appends the missing ones sorted by creation time.
func mergeChildren(current, want []uuid.UUID, byID map[uuid.UUID]*models.Project) []uuid.UUID {
	belongs := make(map[uuid.UUID]struct{}, len(want))
	for _, id := range want {
		belongs[id] = struct{}{}
	}

	out := make([]uuid.UUID, 0, len(want))
	kept := make(map[uuid.UUID]struct{}, len(want))
	for _, id := range current {
		if _, ok := belongs[id]; !ok {
			continue
		}
		if _, dup := kept[id]; dup {
			continue
		}
		kept[id] = struct{}{}
		out = append(out, id)
	}

	var missing []uuid.UUID
	for _, id := range want {
		if _, ok := kept[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.SliceStable(missing, func(i, j int) bool {
		return byID[missing[i]].CreatedAt.Before(byID[missing[j]].CreatedAt)
	})

	return append(out, missing...)
}

func equalIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
