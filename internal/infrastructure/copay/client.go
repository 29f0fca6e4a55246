package copayclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	"github.com/shiftdevices/bitboxd/pkg/copay"
	"github.com/shiftdevices/bitboxd/pkg/wallet/xpub"
)

const requestTimeout = 30 * time.Second

// client implements ports.CopayService against the wallet coordination
// service REST API. Requests are authenticated with the session copayer id;
// the join request is additionally signed with the invitation wallet key.
type client struct {
	baseURL    string
	httpClient *http.Client
	net        *chaincfg.Params
}

func NewService(baseURL string, net *chaincfg.Params) ports.CopayService {
	return &client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		net:        net,
	}
}

func (c *client) FetchWalletAndProposals(
	ctx context.Context, session *domain.MultisigSession,
) (bool, string) {
	status, body, err := c.do(
		ctx, http.MethodGet, "/v2/wallets/?includeExtendedInfo=1", nil, session,
	)
	if err != nil {
		log.WithError(err).Debug("wallet status request failed")
		return false, ""
	}
	if status != http.StatusOK {
		return false, body
	}
	return true, body
}

func (c *client) JoinWallet(
	ctx context.Context, participantName string,
	invitation *copay.Invitation, session *domain.MultisigSession,
) (bool, string) {
	requestPubKey, err := c.requestPubKey(session)
	if err != nil {
		log.WithError(err).Warn("cannot derive the request public key")
		return false, ""
	}

	// the invitation wallet key vouches for the joining copayer
	message := participantName + "|" + session.MasterXPub + "|" + requestPubKey
	signature := signMessage(message, invitation)

	payload := map[string]interface{}{
		"walletId":         invitation.WalletID,
		"name":             participantName,
		"xPubKey":          session.MasterXPub,
		"requestPubKey":    requestPubKey,
		"copayerSignature": signature,
	}
	route := fmt.Sprintf("/v2/wallets/%s/copayers", invitation.WalletID)
	status, body, err := c.do(ctx, http.MethodPost, route, payload, session)
	if err != nil {
		log.WithError(err).Debug("join request failed")
		return false, ""
	}
	return status == http.StatusOK, body
}

func (c *client) SubmitSignatures(
	ctx context.Context, session *domain.MultisigSession,
	proposal *domain.Proposal, signatures []string,
) error {
	payload := map[string]interface{}{
		"signatures": signatures,
	}
	route := fmt.Sprintf("/v1/txproposals/%s/signatures/", proposal.ID)
	status, body, err := c.do(ctx, http.MethodPost, route, payload, session)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("posting signatures: %s", serviceError(body))
	}
	return nil
}

func (c *client) RejectProposal(
	ctx context.Context, session *domain.MultisigSession,
	proposal *domain.Proposal,
) error {
	route := fmt.Sprintf("/v1/txproposals/%s/rejections/", proposal.ID)
	status, body, err := c.do(ctx, http.MethodPost, route, struct{}{}, session)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("rejecting proposal: %s", serviceError(body))
	}
	return nil
}

func (c *client) do(
	ctx context.Context, method, route string, payload interface{},
	session *domain.MultisigSession,
) (int, string, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, body)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if session != nil && session.CopayerID != "" {
		req.Header.Set("x-identity", session.CopayerID)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, string(raw), nil
}

func (c *client) requestPubKey(session *domain.MultisigSession) (string, error) {
	key, err := xpub.Deserialize(session.RequestXPub, c.net)
	if err != nil {
		return "", err
	}
	pubKey, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(pubKey.SerializeCompressed()), nil
}

func signMessage(message string, invitation *copay.Invitation) string {
	first := sha256.Sum256([]byte(message))
	second := sha256.Sum256(first[:])
	signature := ecdsa.Sign(invitation.WalletPrivKey.PrivKey, second[:])
	return hex.EncodeToString(signature.Serialize())
}

func serviceError(body string) string {
	var doc struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &doc); err == nil && doc.Message != "" {
		return doc.Message
	}
	if body == "" {
		return "unknown error"
	}
	return body
}
