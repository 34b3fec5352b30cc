package domain

import "time"

// PKGVersion is the document schema version written into new graphs.
const PKGVersion = 1

// PKG is the whole personal knowledge graph for one user. It is owned and
// mutated exclusively by the graph store; other components only read a
// loaded copy within the scope of a single call.
type PKG struct {
	Version     int              `json:"version"`
	Revision    int64            `json:"revision"`
	UserID      string           `json:"user_id"`
	Nodes       map[string]*Node `json:"nodes"`
	Edges       map[string]*Edge `json:"edges"`
	LastUpdated time.Time        `json:"last_updated"`
}

func NewPKG(userID string) *PKG {
	return &PKG{
		Version: PKGVersion,
		UserID:  userID,
		Nodes:   make(map[string]*Node),
		Edges:   make(map[string]*Edge),
	}
}

// NodesOfType returns the nodes of the given type in unspecified order.
func (p *PKG) NodesOfType(t NodeType) []*Node {
	var out []*Node
	for _, n := range p.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}
