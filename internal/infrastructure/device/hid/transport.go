package hid

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/karalabe/hid"
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

const (
	vendorID  = 0x03eb
	productID = 0x2402

	reportSize  = 64
	readTimeout = 60 * time.Second
)

// usbDevice is the slice of *hid.Device the transport relies on.
type usbDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

// Transport talks to the USB signing device over raw HID reports. Payloads
// are AES-256-CBC encrypted under the double-SHA256 of the session
// credential and exchanged base64-encoded in zero-padded 64-byte reports.
// An empty credential sends the payload in the clear, which the device only
// accepts before a password is set.
type Transport struct {
	lock    *sync.Mutex
	device  usbDevice
	timeout time.Duration
}

func NewTransport() *Transport {
	return &Transport{lock: &sync.Mutex{}, timeout: readTimeout}
}

// IsConnected reports whether a device is currently plugged.
func (t *Transport) IsConnected() bool {
	return len(hid.Enumerate(vendorID, productID)) > 0
}

// Execute forwards one command payload to the device and returns the raw
// result with its transport verdict. Called on a background worker, one
// command at a time.
func (t *Transport) Execute(payload, sessionCredential string) (string, ports.ExecutionStatus) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if err := t.open(); err != nil {
		log.WithError(err).Debug("cannot open hid device")
		return "", ports.ExecutionTransportError
	}

	frame := []byte(payload)
	if sessionCredential != "" {
		encrypted, err := encrypt(frame, credentialKey(sessionCredential))
		if err != nil {
			return "", ports.ExecutionTransportError
		}
		frame = encrypted
	}

	if err := t.write(frame); err != nil {
		log.WithError(err).Debug("hid write failed")
		t.drop()
		return "", ports.ExecutionTransportError
	}

	raw, err := t.read()
	if err != nil {
		// the stale handle must go either way: a late reply would race the
		// next command's reader on the same device
		t.drop()
		if err == errReadTimeout {
			return "", ports.ExecutionTimeout
		}
		log.WithError(err).Debug("hid read failed")
		return "", ports.ExecutionTransportError
	}

	// plaintext error documents are sent in the clear even on an encrypted
	// session, e.g. when the device refuses the credential
	if strings.HasPrefix(raw, "{") {
		return raw, ports.ExecutionOK
	}
	if sessionCredential == "" {
		return raw, ports.ExecutionTransportError
	}

	decrypted, err := decrypt(raw, credentialKey(sessionCredential))
	if err != nil {
		// undecryptable replies happen right after a password change
		return "", ports.ExecutionTransportError
	}
	return string(decrypted), ports.ExecutionOK
}

// Close releases the device handle.
func (t *Transport) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.drop()
}

func (t *Transport) open() error {
	if t.device != nil {
		return nil
	}
	infos := hid.Enumerate(vendorID, productID)
	if len(infos) == 0 {
		return fmt.Errorf("no device found")
	}
	device, err := infos[0].Open()
	if err != nil {
		return err
	}
	t.device = device
	return nil
}

func (t *Transport) drop() {
	if t.device == nil {
		return
	}
	t.device.Close()
	t.device = nil
}

func (t *Transport) write(payload []byte) error {
	total := len(payload)
	for len(payload) > 0 {
		report := make([]byte, reportSize)
		n := copy(report, payload)
		payload = payload[n:]
		if _, err := t.device.Write(report); err != nil {
			return err
		}
	}
	// an exact multiple of the report size still needs the zero-padded
	// terminator report
	if total%reportSize == 0 {
		report := make([]byte, reportSize)
		if _, err := t.device.Write(report); err != nil {
			return err
		}
	}
	return nil
}

var errReadTimeout = fmt.Errorf("read timeout")

func (t *Transport) read() (string, error) {
	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	device := t.device

	go func() {
		var buf bytes.Buffer
		report := make([]byte, reportSize)
		for {
			n, err := device.Read(report)
			if err != nil {
				ch <- result{"", err}
				return
			}
			chunk := bytes.TrimRight(report[:n], "\x00")
			buf.Write(chunk)
			if len(chunk) < reportSize {
				ch <- result{buf.String(), nil}
				return
			}
		}
	}()

	select {
	case res := <-ch:
		return res.raw, res.err
	case <-time.After(t.timeout):
		return "", errReadTimeout
	}
}

// credentialKey stretches the session credential the way the device does.
func credentialKey(credential string) []byte {
	first := sha256.Sum256([]byte(credential))
	second := sha256.Sum256(first[:])
	return second[:]
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, aes.BlockSize+len(padded))
	iv := ciphertext[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext[aes.BlockSize:], padded)

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(ciphertext)))
	base64.StdEncoding.Encode(encoded, ciphertext)
	return encoded, nil
}

func decrypt(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("malformed ciphertext")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, body := ciphertext[:aes.BlockSize], ciphertext[aes.BlockSize:]
	plaintext := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, body)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("malformed padding")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("malformed padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("malformed padding")
		}
	}
	return data[:len(data)-padding], nil
}
