package domain

// ProposalAction is one participant's recorded decision on a payment
// proposal. "Has this party already acted" checks must walk every action
// entry, the proposal itself carries no aggregate flag.
type ProposalAction struct {
	CopayerID string `json:"copayerId"`
	Type      string `json:"type"`
}

// ProposalInput is one input of the draft transaction. Path is the
// derivation suffix below the session signing branch, in the order the
// wallet service produced it.
type ProposalInput struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Path     string `json:"path"`
	Satoshis int64  `json:"satoshis"`
}

// Proposal is a server-held draft transaction waiting for threshold-many
// participant signatures. The input ordering is load-bearing: signatures
// must be collected and submitted 1:1 with this order.
type Proposal struct {
	ID                 string           `json:"id"`
	WalletID           string           `json:"walletId"`
	ToAddress          string           `json:"toAddress"`
	Amount             int64            `json:"amount"`
	Fee                int64            `json:"fee"`
	ChangeAddress      string           `json:"changeAddress"`
	RequiredSignatures int              `json:"requiredSignatures"`
	Inputs             []ProposalInput  `json:"inputs"`
	Actions            []ProposalAction `json:"actions"`
}

const ProposalActionAccept = "accept"

// ActedBy reports whether the given copayer already recorded an action of
// the given type on this proposal.
func (p *Proposal) ActedBy(copayerID, actionType string) bool {
	for _, action := range p.Actions {
		if action.CopayerID == "" || action.Type == "" {
			continue
		}
		if action.CopayerID == copayerID && action.Type == actionType {
			return true
		}
	}
	return false
}

// AcceptedBy reports whether the given copayer already accepted (signed)
// this proposal.
func (p *Proposal) AcceptedBy(copayerID string) bool {
	return p.ActedBy(copayerID, ProposalActionAccept)
}

// ProposalStore holds the last-fetched ordered set of pending payment
// proposals for a wallet and answers navigation queries over it. It is not
// internally synchronized, callers guard it with the session lock.
type ProposalStore struct {
	proposals []*Proposal
	currentID string
}

func NewProposalStore() *ProposalStore {
	return &ProposalStore{}
}

// Replace swaps the stored proposal set wholesale. There is no incremental
// merge: previous proposals are discarded entirely and a selection
// referencing an id absent from the new set is dropped, never left dangling.
func (s *ProposalStore) Replace(proposals []*Proposal) {
	s.proposals = proposals
	if s.currentID != "" && s.byID(s.currentID) == nil {
		s.currentID = ""
	}
}

func (s *ProposalStore) Len() int {
	return len(s.proposals)
}

// List returns the stored proposals in fetch order.
func (s *ProposalStore) List() []*Proposal {
	return s.proposals
}

// ByID returns the unique proposal with the given id, or nil.
func (s *ProposalStore) ByID(id string) *Proposal {
	return s.byID(id)
}

// Select resolves the target id against the stored set. A match becomes the
// current selection; a miss clears any previous one, proposals may have
// been consumed or expired server-side.
func (s *ProposalStore) Select(id string) *Proposal {
	p := s.byID(id)
	if p == nil {
		s.currentID = ""
		return nil
	}
	s.currentID = id
	return p
}

// Current returns the selected proposal, if any. After a Replace the
// selection survives only if the new set still contains its id.
func (s *ProposalStore) Current() *Proposal {
	if s.currentID == "" {
		return nil
	}
	return s.byID(s.currentID)
}

// ClearSelection drops the current selection.
func (s *ProposalStore) ClearSelection() {
	s.currentID = ""
}

// Neighbors returns the ids of the proposals before and after the given one,
// defined purely by position in the last-fetched list. Empty string means no
// neighbor on that side.
func (s *ProposalStore) Neighbors(id string) (prevID, nextID string) {
	for i, p := range s.proposals {
		if p.ID != id {
			continue
		}
		if i > 0 {
			prevID = s.proposals[i-1].ID
		}
		if i < len(s.proposals)-1 {
			nextID = s.proposals[i+1].ID
		}
		return
	}
	return "", ""
}

func (s *ProposalStore) byID(id string) *Proposal {
	for _, p := range s.proposals {
		if p.ID == id {
			return p
		}
	}
	return nil
}
