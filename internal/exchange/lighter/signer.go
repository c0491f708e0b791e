package lighter

import (
	"fmt"
	"time"

	"github.com/elliottech/lighter-go/client"
	lighterhttp "github.com/elliottech/lighter-go/client/http"
	"github.com/elliottech/lighter-go/types"
)

// txSigner produces signed transaction payloads for the venue's zk sequencer.
// The indirection keeps order signing out of the HTTP path so tests can run
// against a fake venue without a valid signing key.
type txSigner interface {
	Check() error
	SignCreateOrder(req *types.CreateOrderTxReq) (string, error)
	SignCancelOrder(req *types.CancelOrderTxReq) (string, error)
	AuthToken(deadline time.Time) (string, error)
}

type sdkSigner struct {
	tx *client.TxClient
}

func newSDKSigner(baseURL, privateKey string, chainID uint32, apiKeyIndex uint8, accountIndex int64) (*sdkSigner, error) {
	httpCli := lighterhttp.NewClient(baseURL)
	txClient, err := client.CreateClient(httpCli, privateKey, chainID, apiKeyIndex, accountIndex)
	if err != nil {
		return nil, fmt.Errorf("create tx client: %w", err)
	}
	return &sdkSigner{tx: txClient}, nil
}

func (s *sdkSigner) Check() error {
	return s.tx.Check()
}

func (s *sdkSigner) SignCreateOrder(req *types.CreateOrderTxReq) (string, error) {
	txInfo, err := s.tx.GetCreateOrderTransaction(req, nil)
	if err != nil {
		return "", fmt.Errorf("sign create order: %w", err)
	}
	return txInfo.GetTxInfo()
}

func (s *sdkSigner) SignCancelOrder(req *types.CancelOrderTxReq) (string, error) {
	txInfo, err := s.tx.GetCancelOrderTransaction(req, nil)
	if err != nil {
		return "", fmt.Errorf("sign cancel order: %w", err)
	}
	return txInfo.GetTxInfo()
}

func (s *sdkSigner) AuthToken(deadline time.Time) (string, error) {
	return s.tx.GetAuthToken(deadline)
}
