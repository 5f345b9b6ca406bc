package domain

// CountRow is a labelled count from an aggregation query.
type CountRow struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// StateCountRow is a count grouped by a label and a story state.
type StateCountRow struct {
	Label string     `json:"label"`
	State StoryState `json:"state"`
	Count int64      `json:"count"`
}

// StorageRow is the total stored size of one element kind.
type StorageRow struct {
	Kind  ElementKind `json:"kind"`
	Bytes int64       `json:"bytes"`
	Files int64       `json:"files"`
}

// UserTotals summarizes accounts by permission.
type UserTotals struct {
	Total     int64 `json:"total"`
	SysAdmins int64 `json:"sys_admins"`
	Curators  int64 `json:"curators"`
	Teachers  int64 `json:"teachers"`
	SiteUsers int64 `json:"site_users"`
	Deleted   int64 `json:"deleted"`
	Disabled  int64 `json:"disabled"`
}
