package transactionService

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/serviceClient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultPollInterval = 5 * time.Second

type Client struct {
	*serviceClient.ServiceClient
	PollInterval time.Duration
}

type submitRequest struct {
	SignedTx string `json:"signedTx"`
}

type submitResponse struct {
	TxHash string `json:"txHash"`
}

type statusResponse struct {
	TxHash        string `json:"txHash"`
	Confirmed     bool   `json:"confirmed"`
	Confirmations int    `json:"confirmations"`
}

func NewClient(cfg *config.ExternalServicesConfig, hc *http.Client, l *zap.Logger) *Client {
	return &Client{
		ServiceClient: serviceClient.NewServiceClient("transaction-service", cfg.TransactionServiceUrl, cfg.ApiKey, hc, l),
		PollInterval:  defaultPollInterval,
	}
}

func (c *Client) Build(ctx context.Context, req *clientTypes.BuildTransactionRequest) (*clientTypes.UnsignedTransaction, error) {
	res := &clientTypes.UnsignedTransaction{}
	if err := c.Do(ctx, http.MethodPost, "/v1/transactions/build", nil, req, res); err != nil {
		return nil, err
	}
	if res.TxHex == "" {
		return nil, fmt.Errorf("transaction service returned an empty transaction")
	}
	return res, nil
}

func (c *Client) Submit(ctx context.Context, signedTxHex string) (string, error) {
	res := &submitResponse{}
	if err := c.Do(ctx, http.MethodPost, "/v1/transactions/submit", nil, &submitRequest{SignedTx: signedTxHex}, res); err != nil {
		return "", err
	}
	if res.TxHash == "" {
		return "", fmt.Errorf("transaction service returned an empty tx hash")
	}
	return res.TxHash, nil
}

func (c *Client) status(ctx context.Context, txHash string) (*statusResponse, error) {
	res := &statusResponse{}
	path := fmt.Sprintf("/v1/transactions/%s/status", url.PathEscape(txHash))
	if err := c.Do(ctx, http.MethodGet, path, nil, nil, res); err != nil {
		// not yet seen by the indexer
		if serviceClient.IsStatus(err, http.StatusNotFound) {
			return &statusResponse{TxHash: txHash}, nil
		}
		return nil, err
	}
	return res, nil
}

// AwaitConfirmation polls until the transaction is confirmed. It returns false without an
// error when the timeout elapses first.
func (c *Client) AwaitConfirmation(ctx context.Context, txHash string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		res, err := c.status(ctx, txHash)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return false, nil
			}
			return false, err
		}
		if res.Confirmed {
			c.Logger.Sugar().Infow("Transaction confirmed",
				zap.String("txHash", txHash),
				zap.Int("confirmations", res.Confirmations),
			)
			return true, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.Logger.Sugar().Warnw("Timed out waiting for transaction confirmation",
					zap.String("txHash", txHash),
					zap.Duration("timeout", timeout),
				)
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
