package terminal

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	sshterminal "golang.org/x/crypto/ssh/terminal"
)

// Prompter implements the inbound UI boundary on the controlling terminal.
// Passwords are read with echo disabled; everything else is plain stdin.
type Prompter struct {
	reader *bufio.Reader
}

func NewPrompter() *Prompter {
	return &Prompter{reader: bufio.NewReader(os.Stdin)}
}

func (p *Prompter) AskSessionPassword() (string, bool) {
	return p.askPassword("Device password: ")
}

func (p *Prompter) AskNewPassword() (string, bool) {
	password, ok := p.askPassword("New device password: ")
	if !ok {
		return "", false
	}
	confirm, ok := p.askPassword("Repeat new device password: ")
	if !ok {
		return "", false
	}
	if password != confirm {
		fmt.Println("The passwords do not match")
		return "", false
	}
	return password, true
}

func (p *Prompter) AskInvitationCode() (string, bool) {
	return p.askLine("Wallet invitation code: ")
}

func (p *Prompter) ConfirmErase() bool {
	answer, ok := p.askLine("Erase the device and forget the local wallet data? [y/N] ")
	if !ok {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (p *Prompter) VerifyEcho(echo string) bool {
	fmt.Printf("Verify on a second channel before signing:\n%s\n", echo)
	answer, ok := p.askLine("Proceed? [y/N] ")
	if !ok {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

func (p *Prompter) askLine(prompt string) (string, bool) {
	fmt.Print(prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil {
		log.WithError(err).Debug("prompt aborted")
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	return line, true
}

func (p *Prompter) askPassword(prompt string) (string, bool) {
	fmt.Print(prompt)
	password, err := sshterminal.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.WithError(err).Debug("password prompt aborted")
		return "", false
	}
	if len(password) == 0 {
		return "", false
	}
	return string(password), true
}
