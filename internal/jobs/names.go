package jobs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"submux/internal/textutil"
)

// nameResolver hands out final output paths that neither exist on disk nor
// are claimed by another in-flight job. Duplicates get " (n)" suffixes.
type nameResolver struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

func newNameResolver() *nameResolver {
	return &nameResolver{claimed: make(map[string]struct{})}
}

// claim reserves a path for dir/name and returns it with a release func.
func (r *nameResolver) claim(dir, name string) (string, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for n := 1; r.taken(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
	r.claimed[candidate] = struct{}{}
	return candidate, func() {
		r.mu.Lock()
		delete(r.claimed, candidate)
		r.mu.Unlock()
	}
}

func (r *nameResolver) taken(path string) bool {
	if _, ok := r.claimed[path]; ok {
		return true
	}
	_, err := os.Lstat(path)
	return err == nil
}

// finalName forces ext onto the user's chosen output name.
func finalName(outputName string, ext string) string {
	name := textutil.NormalizeName(outputName)
	if name == "" {
		name = "output"
	}
	current := filepath.Ext(name)
	switch strings.ToLower(current) {
	case ".mkv", ".mp4", ".srt", ".ass", ".ssa", ".vtt", ".avi", ".mov", ".webm":
		name = strings.TrimSuffix(name, current)
	}
	if name == "" {
		name = "output"
	}
	return name + ext
}
