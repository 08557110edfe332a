package graph

import "github.com/lpgraph/lpgraph/pkg/lpgerr"

func newDuplicateNode(id string) *lpgerr.Error {
	return lpgerr.Newf(lpgerr.DuplicateNode, "node already exists: %s", id).With("node_id", id)
}

func newMissingNode(id string) *lpgerr.Error {
	return lpgerr.Newf(lpgerr.MissingNode, "node not found: %s", id).With("node_id", id)
}
