package application

import (
	"encoding/json"
)

// SigningRequest pairs one sighash with the relative key path suffix the
// device must derive the signing key under.
type SigningRequest struct {
	HashHex string
	Suffix  string
}

func marshalCommand(doc interface{}) string {
	buf, err := json.Marshal(doc)
	if err != nil {
		// only reachable with an unmarshalable doc type
		return "{}"
	}
	return string(buf)
}

func deviceInfoCommand() Command {
	return Command{
		Payload: marshalCommand(map[string]string{"device": "info"}),
		Tag:     TagDeviceInfo,
	}
}

func createWalletCommand(walletName string, requiresTouch bool) Command {
	return Command{
		Payload: marshalCommand(map[string]interface{}{
			"seed": map[string]string{
				"source":   "create",
				"filename": walletName + ".pdf",
			},
		}),
		Tag:           TagCreateWallet,
		RequiresTouch: requiresTouch,
	}
}

func restoreBackupCommand(filename string) Command {
	return Command{
		Payload: marshalCommand(map[string]interface{}{
			"seed": map[string]string{
				"source":   "backup",
				"filename": filename,
			},
		}),
		Tag:           TagCreateWallet,
		RequiresTouch: true,
	}
}

func setPasswordCommand(password string) Command {
	return Command{
		Payload: marshalCommand(map[string]string{"password": password}),
		Tag:     TagPassword,
	}
}

func eraseCommand() Command {
	return Command{
		Payload:       marshalCommand(map[string]string{"reset": "__ERASE__"}),
		Tag:           TagErase,
		RequiresTouch: true,
	}
}

func toggleLEDCommand() Command {
	return Command{
		Payload: marshalCommand(map[string]string{"led": "toggle"}),
		Tag:     TagLEDBlink,
	}
}

func lockDeviceCommand() Command {
	return Command{
		Payload:       marshalCommand(map[string]interface{}{"device": map[string]bool{"lock": true}}),
		Tag:           TagDeviceLock,
		RequiresTouch: true,
	}
}

func randomNumberCommand() Command {
	return Command{
		Payload: marshalCommand(map[string]string{"random": "true"}),
		Tag:     TagRandomNumber,
	}
}

func backupListCommand() Command {
	return Command{
		Payload: marshalCommand(map[string]string{"backup": "list"}),
		Tag:     TagBackupList,
	}
}

func backupAddCommand(filename string) Command {
	return Command{
		Payload: marshalCommand(map[string]interface{}{
			"backup": map[string]string{"filename": filename},
		}),
		Tag: TagBackupAdd,
	}
}

func backupEraseCommand() Command {
	return Command{
		Payload: marshalCommand(map[string]string{"backup": "erase"}),
		Tag:     TagBackupErase,
	}
}

func xpubExportCommand(keyPath string, tag ResponseTag, walletIndex int) Command {
	return Command{
		Payload: marshalCommand(map[string]string{"xpub": keyPath}),
		Tag:     tag,
		Subtag:  walletIndex,
	}
}

func signCommand(requests []SigningRequest, baseKeyPath string) Command {
	data := make([]map[string]string, 0, len(requests))
	for _, req := range requests {
		data = append(data, map[string]string{
			"hash":    req.HashHex,
			"keypath": baseKeyPath + "/45'/" + req.Suffix,
		})
	}
	return Command{
		Payload: marshalCommand(map[string]interface{}{
			"sign": map[string]interface{}{
				"type": "meta",
				"meta": "somedata",
				"data": data,
			},
		}),
		Tag:           TagProposalSign,
		RequiresTouch: true,
	}
}
