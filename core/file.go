package core

// FileRef identifies a file in the file table.
type FileRef uint32

// NoFile is the zero file ref, reserved at construction time.
const NoFile FileRef = 0

// SourceType classifies how a file entered the state.
type SourceType uint8

const (
	SourceNotYetRead SourceType = iota
	SourceNormal
	SourcePayload
	SourceStdlib
	// SourceTombStone marks a file removed from the live set; its ref stays
	// allocated so older locations keep resolving.
	SourceTombStone
)

// StrictnessLevel controls which diagnostic categories a file emits.
type StrictnessLevel uint8

const (
	StrictnessIgnore StrictnessLevel = iota
	StrictnessFalse
	StrictnessTrue
	StrictnessStrict
	StrictnessStrong
)

func (s StrictnessLevel) String() string {
	switch s {
	case StrictnessIgnore:
		return "ignore"
	case StrictnessFalse:
		return "false"
	case StrictnessTrue:
		return "true"
	case StrictnessStrict:
		return "strict"
	case StrictnessStrong:
		return "strong"
	}
	return "unknown"
}

// File is one entry of the file table.
type File struct {
	Path       string
	Source     string
	Type       SourceType
	Strictness StrictnessLevel

	// Hash is the content hash recorded by the indexer; zero until hashed.
	Hash uint64
}

// EnterFile records or replaces a file by path, returning its ref.
func (gs *GlobalState) EnterFile(file File) FileRef {
	if ref, ok := gs.filesByPath[file.Path]; ok {
		gs.ensureFilesUnfrozen()
		gs.files[ref] = file
		return ref
	}
	gs.ensureFilesUnfrozen()
	ref := FileRef(len(gs.files))
	gs.files = append(gs.files, file)
	gs.filesByPath[file.Path] = ref
	return ref
}

// FindFileByPath looks a file up without entering it.
func (gs *GlobalState) FindFileByPath(path string) (FileRef, bool) {
	ref, ok := gs.filesByPath[path]
	return ref, ok
}

// File returns the entry for ref.
func (gs *GlobalState) File(ref FileRef) *File {
	return &gs.files[ref]
}

// FileCount reports the number of allocated file refs, tombstones included.
func (gs *GlobalState) FileCount() int {
	return len(gs.files)
}

// TombStoneFile removes a file from the live set while keeping its ref.
func (gs *GlobalState) TombStoneFile(ref FileRef) {
	gs.ensureFilesUnfrozen()
	gs.files[ref].Type = SourceTombStone
	gs.files[ref].Source = ""
}

// LiveFiles returns refs of all files that are not tombstones and have been
// read.
func (gs *GlobalState) LiveFiles() []FileRef {
	var out []FileRef
	for i := 1; i < len(gs.files); i++ {
		switch gs.files[i].Type {
		case SourceTombStone, SourceNotYetRead:
		default:
			out = append(out, FileRef(i))
		}
	}
	return out
}
