package catalog

// File is a catalog row mirroring one regular file on disk.
type File struct {
	ID      int64   `json:"id"`
	Path    string  `json:"path"`
	Size    int64   `json:"size"`
	ModTime float64 `json:"modTime"`
	Tags    string  `json:"tags,omitempty"`
}

// Tag is a user-defined free-text label. Ord controls manual display
// ordering; ties are broken by name.
type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Ord   int64  `json:"ord"`
	Count int    `json:"count"`
}

// Root is a directory subtree registered for indexing.
type Root struct {
	Path        string  `json:"path"`
	LastScanned float64 `json:"lastScanned"`
}

// Filter describes a conjunctive file query: substring match on path,
// membership in every tag of TagIDs, optional "has at least one tag"
// restriction, and optional root path prefix.
type Filter struct {
	Search     string
	TagIDs     []int64
	OnlyTagged bool
	RootPrefix string
}
