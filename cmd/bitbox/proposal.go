package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

var (
	proposalID string

	proposalListCmd = &cobra.Command{
		Use:   "list",
		Short: "list the pending payment proposals",
		RunE:  proposalList,
	}
	proposalSignCmd = &cobra.Command{
		Use:   "sign",
		Short: "sign a pending payment proposal",
		Long: "this command signs the given proposal with the device keys and " +
			"posts the signatures to the coordination service; the device echo " +
			"must be verified before signing",
		RunE: proposalSign,
	}
	proposalRejectCmd = &cobra.Command{
		Use:   "reject",
		Short: "reject a pending payment proposal",
		RunE:  proposalReject,
	}
	proposalCmd = &cobra.Command{
		Use:   "proposal",
		Short: "act on the pending payment proposals",
		Long: "this command lets you list, sign or reject the payment proposals " +
			"waiting for your signature",
	}
)

func init() {
	for _, cmd := range []*cobra.Command{proposalSignCmd, proposalRejectCmd} {
		cmd.Flags().StringVar(&proposalID, "id", "", "proposal id")
		cmd.MarkFlagRequired("id")
	}

	proposalCmd.AddCommand(proposalListCmd, proposalSignCmd, proposalRejectCmd)
}

func proposalList(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getApp()
	if err != nil {
		return err
	}
	defer cleanup()

	synced := false
	runOnLoop(appCfg, func() { synced = appCfg.SyncService().Update() })
	if !synced {
		printErr(fmt.Errorf("wallet not paired yet, run `bitbox wallet join` first"))
		return nil
	}
	waitIdle(appCfg)

	appCfg.SessionManager().WithSession(
		application.MultisigWalletIndex,
		func(session *domain.MultisigSession) {
			proposals := session.Proposals.List()
			if len(proposals) == 0 {
				fmt.Println("no pending payment proposals")
				return
			}
			for _, p := range proposals {
				fmt.Printf(
					"%s: pay %s to %s (fee %s)\n",
					p.ID, application.FormatBits(p.Amount), p.ToAddress,
					application.FormatBits(p.Fee),
				)
			}
		},
	)
	return nil
}

func proposalSign(cmd *cobra.Command, args []string) error {
	return runProposalAction(application.ActionSign)
}

func proposalReject(cmd *cobra.Command, args []string) error {
	return runProposalAction(application.ActionReject)
}

// runProposalAction syncs the proposal set, logs into the device and runs
// the given action on the selected proposal.
func runProposalAction(action application.ProposalActionType) error {
	acted := false
	return runDeviceOp(func(appCfg *appconfig.AppConfig) {
		// act once on the first completed sync, later resyncs only refresh
		appCfg.SyncService().SetSyncedHook(func() {
			if acted {
				return
			}
			acted = true
			if !appCfg.SigningService().ShowProposal(proposalID) {
				printErr(fmt.Errorf("unknown proposal %s", proposalID))
				return
			}
			appCfg.SigningService().ProcessCurrent(action)
		})
		if !appCfg.SyncService().Update() {
			printErr(fmt.Errorf("wallet not paired yet, run `bitbox wallet join` first"))
		}
	})
}
