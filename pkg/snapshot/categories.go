package snapshot

import (
	"fmt"
	"time"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// Primary types understood by the sequencer
const (
	PrimaryTypeProposal = "Proposal"
	PrimaryTypeSpace    = "Space"
	PrimaryTypeVote     = "Vote"
)

// Category is one Snapshot message kind, owning its EIP-712 struct definition
type Category interface {
	PrimaryType() string
	Fields() []types.TypedField
	Reconstruct(fields map[string]interface{}) (Message, error)
}

// Message is a reconstructed category struct ready to be signed-checked and submitted
type Message interface {
	PrimaryType() string
	Summary() string
}

var (
	proposalFields = []types.TypedField{
		{Name: "from", Type: "address"},
		{Name: "space", Type: "string"},
		{Name: "timestamp", Type: "uint64"},
		{Name: "type", Type: "string"},
		{Name: "title", Type: "string"},
		{Name: "body", Type: "string"},
		{Name: "discussion", Type: "string"},
		{Name: "choices", Type: "string[]"},
		{Name: "start", Type: "uint64"},
		{Name: "end", Type: "uint64"},
		{Name: "snapshot", Type: "uint64"},
		{Name: "plugins", Type: "string"},
		{Name: "app", Type: "string"},
	}
	spaceFields = []types.TypedField{
		{Name: "from", Type: "address"},
		{Name: "space", Type: "string"},
		{Name: "timestamp", Type: "uint64"},
		{Name: "settings", Type: "string"},
	}
	voteFields = []types.TypedField{
		{Name: "from", Type: "address"},
		{Name: "space", Type: "string"},
		{Name: "timestamp", Type: "uint64"},
		{Name: "proposal", Type: "bytes32"},
		{Name: "choice", Type: "uint32"},
		{Name: "reason", Type: "string"},
		{Name: "app", Type: "string"},
		{Name: "metadata", Type: "string"},
	}
)

var categories = map[string]Category{
	PrimaryTypeProposal: proposalCategory{},
	PrimaryTypeSpace:    spaceCategory{},
	PrimaryTypeVote:     voteCategory{},
}

// LookupCategory returns the category for a primary type
func LookupCategory(primaryType string) (Category, error) {
	c, ok := categories[primaryType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, primaryType)
	}
	return c, nil
}

// SupportedPrimaryTypes lists the categories in a stable order
func SupportedPrimaryTypes() []string {
	return []string{PrimaryTypeProposal, PrimaryTypeSpace, PrimaryTypeVote}
}

// copyFields returns a fresh copy of a schema table so callers cannot alter it
func copyFields(fields []types.TypedField) []types.TypedField {
	out := make([]types.TypedField, len(fields))
	copy(out, fields)
	return out
}

func readableTime(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// Proposal is the canonical Snapshot proposal struct
type Proposal struct {
	From       string   `json:"from"`
	Space      string   `json:"space"`
	Timestamp  uint64   `json:"timestamp"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Discussion string   `json:"discussion"`
	Choices    []string `json:"choices"`
	Start      uint64   `json:"start"`
	End        uint64   `json:"end"`
	Snapshot   uint64   `json:"snapshot"`
	Plugins    string   `json:"plugins"`
	App        string   `json:"app"`
}

func (p *Proposal) PrimaryType() string { return PrimaryTypeProposal }

func (p *Proposal) Summary() string {
	return fmt.Sprintf("proposal %q", p.Title)
}

type proposalCategory struct{}

func (proposalCategory) PrimaryType() string { return PrimaryTypeProposal }

func (proposalCategory) Fields() []types.TypedField { return copyFields(proposalFields) }

func (proposalCategory) Reconstruct(fields map[string]interface{}) (Message, error) {
	r := newFieldReader(PrimaryTypeProposal, fields)
	p := &Proposal{
		From:       r.str("from"),
		Space:      r.str("space"),
		Timestamp:  r.unsigned("timestamp", 64),
		Type:       r.str("type"),
		Title:      r.str("title"),
		Body:       r.str("body"),
		Discussion: r.str("discussion"),
		Choices:    r.strs("choices"),
		Start:      r.unsigned("start", 64),
		End:        r.unsigned("end", 64),
		Snapshot:   r.unsigned("snapshot", 64),
		Plugins:    r.str("plugins"),
		App:        r.str("app"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// Space is the canonical Snapshot space settings struct
type Space struct {
	From      string `json:"from"`
	Space     string `json:"space"`
	Timestamp uint64 `json:"timestamp"`
	Settings  string `json:"settings"`
}

func (s *Space) PrimaryType() string { return PrimaryTypeSpace }

func (s *Space) Summary() string {
	return fmt.Sprintf("space %s submitted at %s", s.Space, readableTime(s.Timestamp))
}

type spaceCategory struct{}

func (spaceCategory) PrimaryType() string { return PrimaryTypeSpace }

func (spaceCategory) Fields() []types.TypedField { return copyFields(spaceFields) }

func (spaceCategory) Reconstruct(fields map[string]interface{}) (Message, error) {
	r := newFieldReader(PrimaryTypeSpace, fields)
	s := &Space{
		From:      r.str("from"),
		Space:     r.str("space"),
		Timestamp: r.unsigned("timestamp", 64),
		Settings:  r.str("settings"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

// Vote is the canonical Snapshot single-choice vote struct
type Vote struct {
	From      string `json:"from"`
	Space     string `json:"space"`
	Timestamp uint64 `json:"timestamp"`
	Proposal  string `json:"proposal"`
	Choice    uint32 `json:"choice"`
	Reason    string `json:"reason"`
	App       string `json:"app"`
	Metadata  string `json:"metadata"`
}

func (v *Vote) PrimaryType() string { return PrimaryTypeVote }

func (v *Vote) Summary() string {
	return fmt.Sprintf("vote %s submitted at %s", v.Proposal, readableTime(v.Timestamp))
}

type voteCategory struct{}

func (voteCategory) PrimaryType() string { return PrimaryTypeVote }

func (voteCategory) Fields() []types.TypedField { return copyFields(voteFields) }

// TODO: weighted and ranked votes carry non-integer choices under other primary types; only
// single-choice votes are reconstructed here.
func (voteCategory) Reconstruct(fields map[string]interface{}) (Message, error) {
	r := newFieldReader(PrimaryTypeVote, fields)
	v := &Vote{
		From:      r.str("from"),
		Space:     r.str("space"),
		Timestamp: r.unsigned("timestamp", 64),
		Proposal:  r.str("proposal"),
		Choice:    uint32(r.unsigned("choice", 32)),
		Reason:    r.str("reason"),
		App:       r.str("app"),
		Metadata:  r.str("metadata"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}
