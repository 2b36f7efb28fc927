package client

import (
	"sort"
	"strings"

	"github.com/rauf-alluviam/taskm-sync/internal/board"
)

// Filter is the ad hoc display filter applied on top of the cached task
// set. Zero values mean "no constraint".
type Filter struct {
	// Query is matched case-insensitively against title and description.
	Query string
	// Priority, when valid, requires an exact match.
	Priority board.Priority
	// Tags requires membership of at least one listed tag.
	Tags []string
	// Assignees selects tasks assigned to any of the listed users. A
	// non-empty subset switches the view to the org-wide task set; see
	// NeedsOrgFetch.
	Assignees []string
	// OrgSize is the total number of organization members, used to
	// detect the "all members selected" case, which is equivalent to no
	// assignee constraint.
	OrgSize int

	// ProjectID scopes client-side filtering when AllProjects is set.
	ProjectID string
	// AllProjects marks client-scoped mode: the cache holds tasks from
	// every project and the project predicate runs here. When unset the
	// cache is already server-scoped and no project filtering happens.
	AllProjects bool
}

// NeedsOrgFetch reports whether the assignee selection requires the
// dedicated organization-wide fetch: a non-empty strict subset of the
// members. Selecting none or all of them keeps the standard cache view,
// since assignee filtering must span projects the view does not
// otherwise load.
func (f Filter) NeedsOrgFetch() bool {
	return len(f.Assignees) > 0 && (f.OrgSize == 0 || len(f.Assignees) < f.OrgSize)
}

func (f Filter) matches(t board.Task) bool {
	if f.AllProjects && f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if f.Priority.Valid() && t.Priority != f.Priority {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if t.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.NeedsOrgFetch() && !t.HasAnyAssignee(f.Assignees) {
		return false
	}
	return true
}

// Reconcile derives the ordered task subset to render from the cached
// tasks, the column set and the active filter. Tasks are grouped by
// column order, most recently updated first within a column; tasks whose
// status references no known column sort last so a columns:update that
// removed a lane cannot hide cards silently.
func Reconcile(tasks []board.Task, columns []board.Column, f Filter) []board.Task {
	rank := make(map[string]int, len(columns))
	orphanRank := 0
	for _, c := range columns {
		rank[c.Name] = c.Order
		if c.Order >= orphanRank {
			orphanRank = c.Order + 1
		}
	}
	colRank := func(t board.Task) int {
		if r, ok := rank[t.Status]; ok {
			return r
		}
		return orphanRank
	}

	out := make([]board.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := colRank(out[i]), colRank(out[j])
		if ri != rj {
			return ri < rj
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
