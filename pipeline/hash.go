package pipeline

import (
	"sort"

	"github.com/minio/highwayhash"

	"github.com/viant/strictly/ast"
	"github.com/viant/strictly/core"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// Hash computes the keyed 64-bit content hash used for file and method
// fingerprints.
func Hash(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}

// FileSummary fingerprints one file for the fast-path discriminator: the
// definition hash covers everything outside method bodies, the method
// hashes cover each body region keyed by the method's qualified name.
type FileSummary struct {
	ContentHash    uint64
	DefinitionHash uint64
	MethodHashes   map[string]uint64
}

// Summarize fingerprints source against its parsed program.
func Summarize(source string, prog *ast.Program) *FileSummary {
	out := &FileSummary{MethodHashes: map[string]uint64{}}
	out.ContentHash, _ = Hash([]byte(source))

	type region struct{ begin, end uint32 }
	var bodies []region
	var walk func(prefix string, stmts []ast.Node)
	walk = func(prefix string, stmts []ast.Node) {
		for _, stmt := range stmts {
			switch node := stmt.(type) {
			case *ast.ClassDef:
				name := prefix
				for _, seg := range node.Name {
					if name != "" {
						name += "::"
					}
					name += seg
				}
				walk(name, node.Body)
			case *ast.MethodDef:
				qualified := prefix + "#" + node.Name
				var bodyBegin, bodyEnd uint32
				first := true
				for _, inner := range node.Body {
					loc := inner.NodeLoc()
					if !loc.Exists() {
						continue
					}
					if first || loc.Begin < bodyBegin {
						bodyBegin = loc.Begin
					}
					if first || loc.End > bodyEnd {
						bodyEnd = loc.End
					}
					first = false
				}
				if !first && int(bodyEnd) <= len(source) {
					out.MethodHashes[qualified], _ = Hash([]byte(source[bodyBegin:bodyEnd]))
					bodies = append(bodies, region{bodyBegin, bodyEnd})
				} else {
					out.MethodHashes[qualified], _ = Hash(nil)
				}
			}
		}
	}
	walk("", prog.Stmts)

	// The definition hash excises every body region so signature and shape
	// changes are the only thing it sees; excision keeps the hash stable
	// when a body edit changes region lengths.
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].begin < bodies[j].begin })
	var masked []byte
	prev := uint32(0)
	for _, r := range bodies {
		if r.begin > prev && int(r.begin) <= len(source) {
			masked = append(masked, source[prev:r.begin]...)
		}
		if r.end > prev {
			prev = r.end
		}
	}
	if int(prev) < len(source) {
		masked = append(masked, source[prev:]...)
	}
	out.DefinitionHash, _ = Hash(masked)
	return out
}

// OnlyBodiesChanged reports whether two summaries differ exclusively in
// method-body regions, and which qualified methods changed.
func OnlyBodiesChanged(before, after *FileSummary) (changed []string, ok bool) {
	if before == nil || after == nil {
		return nil, false
	}
	if before.DefinitionHash != after.DefinitionHash {
		return nil, false
	}
	if len(before.MethodHashes) != len(after.MethodHashes) {
		return nil, false
	}
	for name, h := range after.MethodHashes {
		prev, found := before.MethodHashes[name]
		if !found {
			return nil, false
		}
		if prev != h {
			changed = append(changed, name)
		}
	}
	return changed, true
}

// HashFileContents records the content hash onto the file table entry.
func HashFileContents(gs *core.GlobalState, ref core.FileRef) {
	h, _ := Hash([]byte(gs.File(ref).Source))
	gs.File(ref).Hash = h
}
