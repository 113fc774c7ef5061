// # internal/data/store/resolve.go
package store

import (
	"fmt"

	cerrors "chisel/internal/core/errors"
)

// ResolvedSpan is the contract between resolution and patching: a byte span
// guaranteed to correspond to exactly one stored declaration at the time of
// resolution.
type ResolvedSpan struct {
	FilePath  string
	Name      string
	Kind      string
	Language  string
	StartByte uint
	EndByte   uint
	StartLine int
	EndLine   int
}

// ResolveSpan looks up one symbol in the graph. With a file the lookup is
// scoped to that file; without one it searches the whole store and refuses
// to guess: more than one match is an ambiguity error carrying every
// candidate file, never a silent pick.
func ResolveSpan(s Storage, file, kind, name string) (*ResolvedSpan, error) {
	nodes, err := s.FindNodes(NodeQuery{Name: name, Kind: kind, FilePath: file})
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CodeInternal, "querying symbol graph")
	}

	switch len(nodes) {
	case 0:
		msg := fmt.Sprintf("symbol %q not found", name)
		if file != "" {
			msg = fmt.Sprintf("symbol %q not found in %s", name, file)
		}
		err := cerrors.AddContext(
			cerrors.New(cerrors.CodeSymbolNotFound, msg),
			cerrors.CtxSymbol, name)
		if file != "" {
			err = cerrors.AddContext(err, cerrors.CtxPath, file)
		}
		return nil, err
	case 1:
		return spanOf(&nodes[0]), nil
	default:
		// Two matches in the same file (say a function and a method sharing a
		// name) must not list that file twice.
		seen := make(map[string]struct{}, len(nodes))
		candidates := make([]string, 0, len(nodes))
		for i := range nodes {
			if _, dup := seen[nodes[i].FilePath]; dup {
				continue
			}
			seen[nodes[i].FilePath] = struct{}{}
			candidates = append(candidates, nodes[i].FilePath)
		}
		return nil, cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeAmbiguousSymbol,
				fmt.Sprintf("symbol %q matches %d declarations", name, len(nodes))),
			cerrors.CtxSymbol, name), cerrors.CtxCandidates, candidates)
	}
}

func spanOf(n *Node) *ResolvedSpan {
	return &ResolvedSpan{
		FilePath:  n.FilePath,
		Name:      n.Name,
		Kind:      n.Kind,
		Language:  n.Language,
		StartByte: n.StartByte,
		EndByte:   n.EndByte,
		StartLine: n.StartLine,
		EndLine:   n.EndLine,
	}
}
