package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/haldane/pkgd/internal/domain"
	"go.uber.org/zap"
)

var ErrQueryEmpty = errors.New("query is required")

const (
	// AliasConfidenceFactor discounts matches made through a stored alias.
	AliasConfidenceFactor = 0.9
	// SubstringConfidenceFactor discounts loose substring matches.
	SubstringConfidenceFactor = 0.7
	// CapsulePersonLimit caps how many contacts a context capsule renders.
	CapsulePersonLimit = 10
)

// Match evidence tiers, strongest first.
const (
	EvidenceExactLabel = "exact_label"
	EvidenceAlias      = "alias"
	EvidenceSubstring  = "substring"
)

// ResolverService answers entity and attribute lookups over a loaded graph.
// It is read-only and never touches the network.
type ResolverService struct {
	graph  domain.GraphStore
	logger *zap.Logger
}

func NewResolverService(graph domain.GraphStore, logger *zap.Logger) *ResolverService {
	return &ResolverService{graph: graph, logger: logger}
}

// Resolution is one resolved entity with the evidence tier that matched.
type Resolution struct {
	Node       *domain.Node `json:"node"`
	Confidence float32      `json:"confidence"`
	Evidence   string       `json:"evidence"`
}

// Resolve runs three ordered tiers over the graph: exact label, alias,
// then bidirectional substring. The first tier with a hit wins; ties within
// a tier go to the first node encountered. The exact tier compares labels
// verbatim; a case-folded query still resolves, but through the substring
// tier at discounted confidence.
func (s *ResolverService) Resolve(ctx context.Context, userID, query string) (*Resolution, error) {
	if query == "" {
		return nil, ErrQueryEmpty
	}

	pkg, err := s.graph.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(query)
	q := strings.ToLower(trimmed)

	for _, n := range pkg.Nodes {
		if n.Label == trimmed {
			return &Resolution{Node: n, Confidence: n.Confidence, Evidence: EvidenceExactLabel}, nil
		}
	}

	for _, n := range pkg.Nodes {
		for _, alias := range n.Data.Aliases {
			if strings.ToLower(alias) == q {
				return &Resolution{
					Node:       n,
					Confidence: n.Confidence * AliasConfidenceFactor,
					Evidence:   EvidenceAlias,
				}, nil
			}
		}
	}

	for _, n := range pkg.Nodes {
		label := strings.ToLower(n.Label)
		if strings.Contains(label, q) || strings.Contains(q, label) {
			return &Resolution{
				Node:       n,
				Confidence: n.Confidence * SubstringConfidenceFactor,
				Evidence:   EvidenceSubstring,
			}, nil
		}
	}

	return nil, nil
}

// GetAttribute returns the first node value for the named attribute. For
// home_city and home_airport with no direct hit, the first Place label
// serves as the fallback answer.
func (s *ResolverService) GetAttribute(ctx context.Context, userID, attribute string) (string, bool, error) {
	pkg, err := s.graph.Load(ctx, userID)
	if err != nil {
		return "", false, err
	}

	for _, n := range pkg.Nodes {
		if v, ok := n.Data.Get(attribute); ok {
			return v, true, nil
		}
	}

	if attribute == "home_city" || attribute == "home_airport" {
		for _, n := range pkg.Nodes {
			if n.Type == domain.NodeTypePlace {
				return n.Label, true, nil
			}
		}
	}

	return "", false, nil
}

// Capsule is the local context assembled for a prompt, no network involved.
type Capsule struct {
	Entities []*domain.Node `json:"entities"`
	Traits   []string       `json:"traits"`
	Places   []string       `json:"places"`
	Summary  string         `json:"summary"`
}

// BuildContextCapsule assembles prompt context from the graph: contacts
// mentioned in the query, the user's traits and places, and a pipe-joined
// natural-language summary.
func (s *ResolverService) BuildContextCapsule(ctx context.Context, userID, query string) (*Capsule, error) {
	pkg, err := s.graph.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	capsule := &Capsule{
		Entities: []*domain.Node{},
		Traits:   []string{},
		Places:   []string{},
	}
	if len(pkg.Nodes) == 0 {
		return capsule, nil
	}

	q := strings.ToLower(query)
	var people []*domain.Node
	for _, n := range pkg.Nodes {
		switch n.Type {
		case domain.NodeTypePerson:
			people = append(people, n)
			if strings.Contains(q, strings.ToLower(n.Label)) {
				capsule.Entities = append(capsule.Entities, n)
			}
		case domain.NodeTypeTrait:
			capsule.Traits = append(capsule.Traits, n.Label)
		case domain.NodeTypePlace:
			capsule.Places = append(capsule.Places, n.Label)
		}
	}

	var sections []string

	for _, n := range pkg.Nodes {
		if n.Type == domain.NodeTypeUser {
			sections = append(sections, "User: "+n.Label)
			break
		}
	}

	if len(people) > 0 {
		rendered := make([]string, 0, CapsulePersonLimit)
		for i, p := range people {
			if i == CapsulePersonLimit {
				break
			}
			rendered = append(rendered, renderPerson(p))
		}
		section := "Contacts: " + strings.Join(rendered, "; ")
		if extra := len(people) - CapsulePersonLimit; extra > 0 {
			section += fmt.Sprintf(" +%d more", extra)
		}
		sections = append(sections, section)
	}

	if len(capsule.Traits) > 0 {
		sections = append(sections, "Traits: "+strings.Join(capsule.Traits, ", "))
	}
	if len(capsule.Places) > 0 {
		sections = append(sections, "Places: "+strings.Join(capsule.Places, ", "))
	}

	capsule.Summary = strings.Join(sections, " | ")
	return capsule, nil
}

func renderPerson(p *domain.Node) string {
	out := p.Label
	if p.Data.Relationship != "" {
		out += " (" + p.Data.Relationship + ")"
	}
	if p.Data.Email != "" {
		out += ", email: " + p.Data.Email
	}
	if p.Data.Phone != "" {
		out += ", phone: " + p.Data.Phone
	}
	return out
}

// Stats reports graph size.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

func (s *ResolverService) Stats(ctx context.Context, userID string) (*Stats, error) {
	pkg, err := s.graph.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{Nodes: len(pkg.Nodes), Edges: len(pkg.Edges)}, nil
}
