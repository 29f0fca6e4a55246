package main

import (
	"github.com/spf13/cobra"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
)

var (
	backupFile string

	deviceInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "get device info",
		Long: "this command logs into the device and prints its name, firmware " +
			"version and seed state",
		RunE: deviceInfo,
	}
	deviceCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "seed the device with a brand new wallet",
		Long: "this command generates a new wallet seed on the device; it needs " +
			"the touch button",
		RunE: deviceCreate,
	}
	deviceRestoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "restore a wallet seed from a backup",
		Long:  "this command seeds the device from the given backup file on its microSD card",
		RunE:  deviceRestore,
	}
	devicePasswordCmd = &cobra.Command{
		Use:   "password",
		Short: "change the device password",
		Long:  "this command lets you replace the device password with a new one",
		RunE:  devicePassword,
	}
	deviceRandomCmd = &cobra.Command{
		Use:   "random",
		Short: "get a random number from the device",
		RunE:  deviceRandom,
	}
	deviceLedCmd = &cobra.Command{
		Use:   "led",
		Short: "blink the device LED",
		RunE:  deviceLed,
	}
	deviceLockCmd = &cobra.Command{
		Use:   "lock",
		Short: "enable full 2FA device lock",
		Long: "this command locks the device: afterwards every sensitive " +
			"operation needs the second factor; it needs the touch button",
		RunE: deviceLock,
	}
	deviceEraseCmd = &cobra.Command{
		Use:   "erase",
		Short: "erase the device",
		Long: "this command wipes the device seed and forgets the local wallet " +
			"data; it needs the touch button",
		RunE: deviceErase,
	}
	backupListCmd = &cobra.Command{
		Use:   "list",
		Short: "list the backups on the microSD card",
		RunE:  backupList,
	}
	backupAddCmd = &cobra.Command{
		Use:   "add",
		Short: "write a new backup to the microSD card",
		RunE:  backupAdd,
	}
	backupEraseCmd = &cobra.Command{
		Use:   "erase",
		Short: "erase all backups on the microSD card",
		RunE:  backupErase,
	}
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "manage the microSD card backups",
	}
	deviceCmd = &cobra.Command{
		Use:   "device",
		Short: "interact with the plugged Digital Bitbox",
		Long: "this command lets you manage the plugged device: seed it, back it " +
			"up, change its password or erase it",
	}
)

func init() {
	deviceRestoreCmd.Flags().StringVar(
		&backupFile, "file", "", "backup filename on the microSD card",
	)
	deviceRestoreCmd.MarkFlagRequired("file")

	backupCmd.AddCommand(backupListCmd, backupAddCmd, backupEraseCmd)
	deviceCmd.AddCommand(
		deviceInfoCmd, deviceCreateCmd, deviceRestoreCmd, devicePasswordCmd,
		deviceRandomCmd, deviceLedCmd, deviceLockCmd, deviceEraseCmd, backupCmd,
	)
}

func deviceInfo(cmd *cobra.Command, args []string) error {
	appCfg, cleanup, err := getApp()
	if err != nil {
		return err
	}
	defer cleanup()

	// the plug-in flow already fetches and prints the device info
	if err := connectDevice(appCfg); err != nil {
		printErr(err)
	}
	return nil
}

func deviceCreate(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().CreateWallet() })
}

func deviceRestore(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) {
		appCfg.DeviceService().RestoreBackup(backupFile)
	})
}

func devicePassword(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().ChangePassword() })
}

func deviceRandom(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().RandomNumber() })
}

func deviceLed(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().ToggleLED() })
}

func deviceLock(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().Lock() })
}

func deviceErase(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().Erase() })
}

func backupList(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().ListBackups() })
}

func backupAdd(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().AddBackup() })
}

func backupErase(cmd *cobra.Command, args []string) error {
	return runDeviceOp(func(appCfg *appconfig.AppConfig) { appCfg.DeviceService().EraseAllBackups() })
}
