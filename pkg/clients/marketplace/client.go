package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/serviceClient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Client struct {
	*serviceClient.ServiceClient
}

func NewClient(cfg *config.ExternalServicesConfig, hc *http.Client, l *zap.Logger) *Client {
	return &Client{
		ServiceClient: serviceClient.NewServiceClient("marketplace", cfg.MarketplaceUrl, cfg.ApiKey, hc, l),
	}
}

func (c *Client) GetListing(ctx context.Context, market string, unit string) (*clientTypes.Listing, error) {
	res := &clientTypes.Listing{}
	path := fmt.Sprintf("/v1/markets/%s/listings/%s", url.PathEscape(market), url.PathEscape(unit))
	if err := c.Do(ctx, http.MethodGet, path, nil, nil, res); err != nil {
		if serviceClient.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if res.ListingId == "" {
		return nil, nil
	}
	if res.Market == "" {
		res.Market = market
	}
	return res, nil
}

func (c *Client) BuildMarketTransaction(ctx context.Context, req *clientTypes.MarketTransactionRequest) (*clientTypes.UnsignedTransaction, error) {
	if req.Operations == nil || req.Operations.Len() == 0 {
		return nil, fmt.Errorf("no marketplace operations to build")
	}
	res := &clientTypes.UnsignedTransaction{}
	if err := c.Do(ctx, http.MethodPost, "/v1/markets/transactions", nil, req, res); err != nil {
		var apiErr *clientTypes.ApiError
		if errors.As(err, &apiErr) {
			switch apiErr.StatusCode {
			case http.StatusConflict:
				return nil, errors.Wrap(clientTypes.ErrAlreadyListed, apiErr.Message)
			case http.StatusNotFound, http.StatusGone:
				// the listing or offer an operation targets no longer exists
				return nil, errors.Wrap(clientTypes.ErrAssetUnavailable, apiErr.Message)
			}
		}
		return nil, err
	}
	return res, nil
}

func (c *Client) BuildSwapTransaction(ctx context.Context, req *clientTypes.SwapQuoteRequest) (*clientTypes.UnsignedTransaction, error) {
	res := &clientTypes.UnsignedTransaction{}
	if err := c.Do(ctx, http.MethodPost, "/v1/swaps/build", nil, req, res); err != nil {
		var apiErr *clientTypes.ApiError
		if errors.As(err, &apiErr) {
			switch {
			case apiErr.StatusCode == http.StatusNotFound,
				strings.Contains(strings.ToLower(apiErr.Message), "pool not found"):
				return nil, errors.Wrap(clientTypes.ErrPoolNotFound, apiErr.Message)
			case apiErr.StatusCode == http.StatusUnprocessableEntity:
				return nil, errors.Wrap(clientTypes.ErrInsufficientFunds, apiErr.Message)
			}
		}
		return nil, err
	}
	return res, nil
}
