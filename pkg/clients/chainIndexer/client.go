package chainIndexer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/serviceClient"
	"go.uber.org/zap"
)

type Client struct {
	*serviceClient.ServiceClient
}

type holdersResponse struct {
	Holders []clientTypes.Holder `json:"holders"`
}

type assetsResponse struct {
	Assets []clientTypes.AssetAmount `json:"assets"`
}

func NewClient(cfg *config.ExternalServicesConfig, hc *http.Client, l *zap.Logger) *Client {
	return &Client{
		ServiceClient: serviceClient.NewServiceClient("chain-indexer", cfg.ChainIndexerUrl, cfg.ApiKey, hc, l),
	}
}

func (c *Client) GetTokenHolders(ctx context.Context, tokenId string, page int, pageSize int) ([]clientTypes.Holder, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("count", strconv.Itoa(pageSize))

	res := &holdersResponse{}
	path := fmt.Sprintf("/v1/assets/%s/addresses", url.PathEscape(tokenId))
	if err := c.Do(ctx, http.MethodGet, path, query, nil, res); err != nil {
		return nil, err
	}
	return res.Holders, nil
}

func (c *Client) GetAddressAssets(ctx context.Context, address string) ([]clientTypes.AssetAmount, error) {
	res := &assetsResponse{}
	path := fmt.Sprintf("/v1/addresses/%s/assets", url.PathEscape(address))
	if err := c.Do(ctx, http.MethodGet, path, nil, nil, res); err != nil {
		// an address the indexer has never seen holds nothing
		if serviceClient.IsStatus(err, http.StatusNotFound) {
			return []clientTypes.AssetAmount{}, nil
		}
		return nil, err
	}
	return res.Assets, nil
}
