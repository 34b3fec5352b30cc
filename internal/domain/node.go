package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type NodeType string

const (
	NodeTypePerson   NodeType = "person"
	NodeTypeUser     NodeType = "user"
	NodeTypePlace    NodeType = "place"
	NodeTypeEvent    NodeType = "event"
	NodeTypeTrait    NodeType = "trait"
	NodeTypeInterest NodeType = "interest"
	NodeTypeFact     NodeType = "fact"
	NodeTypeSource   NodeType = "source"
	NodeTypeTask     NodeType = "task"
	NodeTypeProject  NodeType = "project"
	NodeTypeDocument NodeType = "document"
)

func ValidNodeType(t string) bool {
	switch NodeType(t) {
	case NodeTypePerson, NodeTypeUser, NodeTypePlace, NodeTypeEvent,
		NodeTypeTrait, NodeTypeInterest, NodeTypeFact, NodeTypeSource,
		NodeTypeTask, NodeTypeProject, NodeTypeDocument:
		return true
	}
	return false
}

// Canonical reports whether repeated observations of the same label should
// merge into a single node rather than accumulate as distinct nodes.
func (t NodeType) Canonical() bool {
	switch t {
	case NodeTypeTrait, NodeTypePlace, NodeTypeEvent, NodeTypeInterest:
		return true
	}
	return false
}

type EdgeType string

const (
	EdgeTypeKnows        EdgeType = "knows"
	EdgeTypeWorksWith    EdgeType = "works_with"
	EdgeTypeRelatedTo    EdgeType = "related_to"
	EdgeTypeLivesIn      EdgeType = "lives_in"
	EdgeTypeAttended     EdgeType = "attended"
	EdgeTypeInterestedIn EdgeType = "interested_in"
	EdgeTypeMentions     EdgeType = "mentions"
	EdgeTypeOwns         EdgeType = "owns"
)

func ValidEdgeType(t string) bool {
	switch EdgeType(t) {
	case EdgeTypeKnows, EdgeTypeWorksWith, EdgeTypeRelatedTo, EdgeTypeLivesIn,
		EdgeTypeAttended, EdgeTypeInterestedIn, EdgeTypeMentions, EdgeTypeOwns:
		return true
	}
	return false
}

type Provenance string

const (
	ProvenanceContacts   Provenance = "contacts"
	ProvenanceCalendar   Provenance = "calendar"
	ProvenanceCallLog    Provenance = "call_log"
	ProvenanceChatExport Provenance = "chat_export"
	ProvenanceMedia      Provenance = "media"
	ProvenanceManual     Provenance = "manual"
	ProvenanceInferred   Provenance = "inferred"
)

func ValidProvenance(p string) bool {
	switch Provenance(p) {
	case ProvenanceContacts, ProvenanceCalendar, ProvenanceCallLog,
		ProvenanceChatExport, ProvenanceMedia, ProvenanceManual, ProvenanceInferred:
		return true
	}
	return false
}

// NodeData carries the per-type optional fields of a node. Unknown producer
// fields land in Extra so a new collaborator doesn't force a schema change.
type NodeData struct {
	Relationship string            `json:"relationship,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Signal       string            `json:"signal,omitempty"`
	Email        string            `json:"email,omitempty"`
	Phone        string            `json:"phone,omitempty"`
	Role         string            `json:"role,omitempty"`
	Category     string            `json:"category,omitempty"`
	Address      string            `json:"address,omitempty"`
	Context      string            `json:"context,omitempty"`
	Date         string            `json:"date,omitempty"`
	Location     string            `json:"location,omitempty"`
	Attendees    []string          `json:"attendees,omitempty"`
	Value        string            `json:"value,omitempty"`
	Aliases      []string          `json:"aliases,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Get looks up a named attribute, checking the typed fields first and the
// open Extra map second.
func (d NodeData) Get(attr string) (string, bool) {
	var v string
	switch attr {
	case "relationship":
		v = d.Relationship
	case "organization", "company":
		v = d.Organization
	case "signal":
		v = d.Signal
	case "email":
		v = d.Email
	case "phone":
		v = d.Phone
	case "role":
		v = d.Role
	case "category":
		v = d.Category
	case "address":
		v = d.Address
	case "context":
		v = d.Context
	case "date":
		v = d.Date
	case "location":
		v = d.Location
	case "value":
		v = d.Value
	default:
		v = d.Extra[attr]
	}
	if v == "" {
		return "", false
	}
	return v, true
}

type Node struct {
	ID         string     `json:"id"`
	Type       NodeType   `json:"type"`
	Label      string     `json:"label"`
	Data       NodeData   `json:"data,omitempty"`
	Confidence float32    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SyncedAt   *time.Time `json:"synced_at,omitempty"`
}

type Edge struct {
	ID         string     `json:"id"`
	Type       EdgeType   `json:"type"`
	FromID     string     `json:"from_id"`
	ToID       string     `json:"to_id"`
	Label      string     `json:"label,omitempty"`
	Confidence float32    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Slug lowercases s and collapses every run of non-alphanumeric characters
// into a single underscore: "Night  Owl!" becomes "night_owl".
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	return b.String()
}

// CanonicalNodeID derives the stable id for a fact node. Canonical types
// share one id per label so repeated ingestion merges; every other type gets
// a uniqueness token so each observation is its own node.
func CanonicalNodeID(t NodeType, label string) string {
	id := string(t) + "_" + Slug(label)
	if t.Canonical() {
		return id
	}
	return id + "_" + uuid.NewString()[:8]
}

// PersonNodeID is the stable id for a registered contact.
func PersonNodeID(name string) string {
	return "person_" + Slug(name)
}
