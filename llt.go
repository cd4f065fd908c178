package classloader

// llEntry pairs a library path with the Shared-Library Primitive
// handle backing it, spec §3's "loaded-library entry".
type llEntry struct {
	path   string
	handle sharedLibraryHandle
}

// loadedLibraryTable is spec §4.5's LLT: a sequence, not a map,
// because iteration order must be stable and "at most one entry per
// path" is a runtime invariant, not a container contract: append does
// not check for an existing entry, and Registry.loadLibrary appends
// only after finding none for the path while holding loadMu.
type loadedLibraryTable struct {
	entries []llEntry
}

func (t *loadedLibraryTable) find(path string) (*llEntry, bool) {
	for i := range t.entries {
		if t.entries[i].path == path {
			return &t.entries[i], true
		}
	}
	return nil, false
}

func (t *loadedLibraryTable) append(path string, handle sharedLibraryHandle) {
	t.entries = append(t.entries, llEntry{path: path, handle: handle})
}

func (t *loadedLibraryTable) remove(path string) {
	for i := range t.entries {
		if t.entries[i].path == path {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

func (t *loadedLibraryTable) paths() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.path)
	}
	return out
}
