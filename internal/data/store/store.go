// # internal/data/store/store.go
package store

// Node is one stored symbol declaration with its exact byte span.
type Node struct {
	ID         int64
	FilePath   string
	Name       string
	Kind       string
	Language   string
	ModulePath string
	Visibility string
	StartByte  uint
	EndByte    uint
	StartLine  int
	EndLine    int
}

// Edge records a file-level relation discovered during indexing, either an
// import or a resolved symbol reference.
type Edge struct {
	FromFile string
	ToFile   string
	Kind     string // "import" or "reference"
	Name     string // referenced symbol, empty for bare module imports
}

const (
	EdgeImport    = "import"
	EdgeReference = "reference"
)

// NodeQuery filters FindNodes. Empty fields match everything.
type NodeQuery struct {
	Name     string
	Kind     string
	FilePath string
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	Files int
	Nodes int
	Edges int
}

// Storage is the persistent symbol graph. Writes are file-granular: a file's
// nodes and outgoing edges are always replaced together so the graph never
// holds a half-indexed file.
type Storage interface {
	ReplaceFile(path string, nodes []Node, edges []Edge) error
	FindNodes(q NodeQuery) ([]Node, error)
	EdgesFrom(path string) ([]Edge, error)
	DeleteFile(path string) error
	Files() ([]string, error)
	Stats() (Stats, error)
	Close() error
}
