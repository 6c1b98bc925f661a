package model

// ChangeProposal is a candidate rate change inferred from a document. Item,
// NewRate and Quote are set only when Detected is true.
type ChangeProposal struct {
	Detected bool     `json:"change_detected"`
	Item     string   `json:"item,omitempty"`
	NewRate  *float64 `json:"new_val,omitempty"`
	Quote    string   `json:"quote,omitempty"`
}

// VerdictKind discriminates the variants of a Verdict.
type VerdictKind int

const (
	VerdictNoChange VerdictKind = iota
	VerdictChange
	VerdictUnparseable
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictNoChange:
		return "no_change"
	case VerdictChange:
		return "change"
	case VerdictUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// Change is the payload of a positive verdict.
type Change struct {
	Item  string
	Rate  float64
	Quote string
}

// Verdict is the interpreted output of the inference oracle. Change is set
// only for VerdictChange; Raw keeps the oracle text for diagnostics.
type Verdict struct {
	Kind   VerdictKind
	Change *Change
	Raw    string
	Reason string
}

// Proposal collapses the verdict into a ChangeProposal. Unparseable output
// is reported as no change.
func (v Verdict) Proposal() ChangeProposal {
	if v.Kind != VerdictChange || v.Change == nil {
		return ChangeProposal{}
	}
	return ChangeProposal{
		Detected: true,
		Item:     v.Change.Item,
		NewRate:  Float(v.Change.Rate),
		Quote:    v.Change.Quote,
	}
}
