package extraction

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/serviceClient"
	"go.uber.org/zap"
)

type Client struct {
	*serviceClient.ServiceClient
}

type extractRequest struct {
	Units       []clientTypes.AssetAmount `json:"units"`
	Destination string                    `json:"destination"`
}

type extractResponse struct {
	TxHash string `json:"txHash"`
}

func NewClient(cfg *config.ExternalServicesConfig, hc *http.Client, l *zap.Logger) *Client {
	return &Client{
		ServiceClient: serviceClient.NewServiceClient("extraction-service", cfg.ExtractionServiceUrl, cfg.ApiKey, hc, l),
	}
}

func (c *Client) ExtractAssets(ctx context.Context, vaultId string, units []clientTypes.AssetAmount, destination string) (string, error) {
	if len(units) == 0 {
		return "", fmt.Errorf("no units to extract")
	}
	res := &extractResponse{}
	path := fmt.Sprintf("/v1/vaults/%s/extract", url.PathEscape(vaultId))
	if err := c.Do(ctx, http.MethodPost, path, nil, &extractRequest{Units: units, Destination: destination}, res); err != nil {
		return "", err
	}
	if res.TxHash == "" {
		return "", fmt.Errorf("extraction service returned an empty tx hash")
	}
	c.Logger.Sugar().Infow("Submitted asset extraction",
		zap.String("vaultId", vaultId),
		zap.Int("units", len(units)),
		zap.String("txHash", res.TxHash),
	)
	return res.TxHash, nil
}
