package ports

import (
	"context"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/pkg/copay"
)

// CopayService abstracts the remote multisig wallet coordination service.
// Routes and wire formats are the implementation's contract, the core only
// consumes these four operations. All calls block and therefore run on
// background workers.
type CopayService interface {
	// FetchWalletAndProposals returns the raw wallet status document,
	// including the pending proposal array, for the joined wallet.
	FetchWalletAndProposals(
		ctx context.Context, session *domain.MultisigSession,
	) (available bool, rawResponse string)
	// JoinWallet registers the participant on the shared wallet described
	// by the invitation. The raw response carries the service error message
	// on failure.
	JoinWallet(
		ctx context.Context, participantName string,
		invitation *copay.Invitation, session *domain.MultisigSession,
	) (ok bool, rawResponse string)
	// SubmitSignatures posts the ordered signature list for the proposal,
	// attributed to the session's copayer.
	SubmitSignatures(
		ctx context.Context, session *domain.MultisigSession,
		proposal *domain.Proposal, signatures []string,
	) error
	// RejectProposal records this participant's rejection.
	RejectProposal(
		ctx context.Context, session *domain.MultisigSession,
		proposal *domain.Proposal,
	) error
}
