package board

import "sort"

// Column is one lane of a kanban board. Name doubles as the status value
// stored on tasks, so it is a case-sensitive identifier; renaming is not
// supported, only add and remove.
type Column struct {
	Name      string `json:"name"`
	Order     int    `json:"order"`
	Color     string `json:"color,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// DefaultColumns is the column set used for personal tasks, i.e. tasks
// with no owning project.
func DefaultColumns() []Column {
	return []Column{
		{Name: "todo", Order: 0, Color: "#e2e8f0"},
		{Name: "in-progress", Order: 1, Color: "#bfdbfe"},
		{Name: "done", Order: 2, Color: "#bbf7d0"},
	}
}

// SortColumns orders columns left to right by their Order field.
func SortColumns(cols []Column) {
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Order < cols[j].Order })
}

// ColumnNames returns the set of valid status values for the column set.
func ColumnNames(cols []Column) map[string]struct{} {
	names := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		names[c.Name] = struct{}{}
	}
	return names
}
