package changeanalyzer

// FileEntry is one path -> content-hash pair in a project's file-hash map.
type FileEntry struct {
	// Path is repo-relative, POSIX-style separators.
	Path string
	// Hash is a hex string: the VCS object hash for tracked files, or a
	// streaming content hash for untracked ones.
	Hash string
}

// FileHashMap is an ordered path -> content hash mapping for one project.
// Entries are always sorted lexicographically by Path so that identical
// inputs across runs produce an identical, comparable map (spec §3).
type FileHashMap struct {
	Files []FileEntry
}

// Equal reports whether two maps have exactly the same paths and hashes, in
// the same order. Since both sides are always produced pre-sorted this is a
// plain slice comparison, used by the incremental-skip check (spec §4.F).
func (m FileHashMap) Equal(other FileHashMap) bool {
	if len(m.Files) != len(other.Files) {
		return false
	}

	for i, f := range m.Files {
		if f != other.Files[i] {
			return false
		}
	}

	return true
}

// Len returns the number of tracked entries.
func (m FileHashMap) Len() int { return len(m.Files) }
