package domain_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

func makeProposals(ids ...string) []*domain.Proposal {
	proposals := make([]*domain.Proposal, 0, len(ids))
	for _, id := range ids {
		proposals = append(proposals, &domain.Proposal{
			ID:        id,
			ToAddress: fmt.Sprintf("addr-%s", id),
			Amount:    1000,
		})
	}
	return proposals
}

func TestProposalStoreSelectAndNeighbors(t *testing.T) {
	store := domain.NewProposalStore()
	store.Replace(makeProposals("a", "b", "c"))
	require.Equal(t, 3, store.Len())

	p := store.Select("b")
	require.NotNil(t, p)
	require.Equal(t, "b", p.ID)
	require.Equal(t, "b", store.Current().ID)

	prev, next := store.Neighbors("b")
	require.Equal(t, "a", prev)
	require.Equal(t, "c", next)

	prev, next = store.Neighbors("a")
	require.Empty(t, prev)
	require.Equal(t, "b", next)

	prev, next = store.Neighbors("c")
	require.Equal(t, "b", prev)
	require.Empty(t, next)

	prev, next = store.Neighbors("unknown")
	require.Empty(t, prev)
	require.Empty(t, next)
}

func TestProposalStoreSelectMissClearsSelection(t *testing.T) {
	store := domain.NewProposalStore()
	store.Replace(makeProposals("a", "b"))

	require.NotNil(t, store.Select("a"))
	require.NotNil(t, store.Current())

	require.Nil(t, store.Select("gone"))
	require.Nil(t, store.Current())
}

func TestProposalStoreReplaceDropsDanglingSelection(t *testing.T) {
	store := domain.NewProposalStore()
	store.Replace(makeProposals("a", "b", "c"))
	store.Select("b")

	// b survives the resync
	store.Replace(makeProposals("b", "d"))
	require.NotNil(t, store.Current())
	require.Equal(t, "b", store.Current().ID)

	// b consumed server-side, the selection must not dangle
	store.Replace(makeProposals("d", "e"))
	require.Nil(t, store.Current())

	// navigation links are recomputed from the new list only
	prev, next := store.Neighbors("d")
	require.Empty(t, prev)
	require.Equal(t, "e", next)
}

func TestProposalStoreReplaceWithEmptySet(t *testing.T) {
	store := domain.NewProposalStore()
	store.Replace(makeProposals("a"))
	store.Select("a")

	store.Replace(nil)
	require.Zero(t, store.Len())
	require.Nil(t, store.Current())
	require.Empty(t, store.List())
}

func TestProposalActedBy(t *testing.T) {
	p := &domain.Proposal{
		ID: "p1",
		Actions: []domain.ProposalAction{
			{CopayerID: "alice", Type: "accept"},
			{CopayerID: "", Type: "accept"}, // malformed entry, skipped
			{CopayerID: "bob", Type: "reject"},
		},
	}

	require.True(t, p.AcceptedBy("alice"))
	require.False(t, p.AcceptedBy("bob"))
	require.True(t, p.ActedBy("bob", "reject"))
	require.False(t, p.AcceptedBy("carol"))
}
