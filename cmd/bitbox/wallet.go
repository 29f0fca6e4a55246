package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

var (
	walletAccount string

	walletJoinCmd = &cobra.Command{
		Use:   "join",
		Short: "join a shared wallet",
		Long: "this command exports the wallet keys from the device, asks for an " +
			"invitation code and registers you as a copayer of the shared wallet",
		RunE: walletJoin,
	}
	walletSyncCmd = &cobra.Command{
		Use:   "sync",
		Short: "sync the shared wallet",
		Long: "this command fetches the wallet status and its pending payment " +
			"proposals from the coordination service",
		RunE: walletSync,
	}
	walletStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "print the cached wallet state",
		RunE:  walletStatus,
	}
	walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "interact with the shared Copay wallet",
		Long: "this command lets you join the shared multisig wallet and keep " +
			"its state in sync",
	}
)

func init() {
	walletJoinCmd.Flags().StringVar(
		&walletAccount, "account", "multisig", "wallet account: single | multisig",
	)

	walletCmd.AddCommand(walletJoinCmd, walletSyncCmd, walletStatusCmd)
}

func accountIndex() (int, error) {
	switch walletAccount {
	case "single":
		return application.SingleWalletIndex, nil
	case "multisig":
		return application.MultisigWalletIndex, nil
	default:
		return 0, fmt.Errorf("unknown account, must be one of: single | multisig")
	}
}

func walletJoin(cmd *cobra.Command, args []string) error {
	index, err := accountIndex()
	if err != nil {
		return err
	}

	return runDeviceOp(func(appCfg *appconfig.AppConfig) {
		appCfg.PairingService().JoinWallet(index)
	})
}

func walletSync(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getApp()
	if err != nil {
		return err
	}
	defer cleanup()

	synced := false
	runOnLoop(appCfg, func() { synced = appCfg.SyncService().Update() })
	if !synced {
		printErr(fmt.Errorf("wallet not paired yet, run `bitbox wallet join` first"))
	}
	return nil
}

func walletStatus(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getApp()
	if err != nil {
		return err
	}
	defer cleanup()

	runOnLoop(appCfg, func() { appCfg.SyncService().Update() })
	waitIdle(appCfg)

	appCfg.SessionManager().WithSession(
		application.MultisigWalletIndex,
		func(session *domain.MultisigSession) {
			fmt.Printf("wallet: %s\n", session.DisplayName())
			fmt.Printf("paired: %v\n", session.IsSeeded())
			fmt.Printf("balance: %s\n", application.FormatBits(session.AvailableBalance))
			fmt.Printf("pending proposals: %d\n", session.Proposals.Len())
		},
	)
	return nil
}
