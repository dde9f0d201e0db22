package chainIndexer

import (
	"context"
	"net/http"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func Test_ChainIndexer(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &config.ExternalServicesConfig{ChainIndexerUrl: "https://indexer.test"}

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := NewClient(cfg, &http.Client{Transport: httpmock.DefaultTransport}, l)

	t.Run("Pages through token holders", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://indexer.test/v1/assets/policy.vt/addresses",
			func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "100", req.URL.Query().Get("count"))
				if req.URL.Query().Get("page") == "1" {
					return httpmock.NewStringResponse(200, `{"holders":[{"address":"a","quantity":"300"},{"address":"b","quantity":"100"}]}`), nil
				}
				return httpmock.NewStringResponse(200, `{"holders":[]}`), nil
			},
		)

		holders, err := client.GetTokenHolders(context.Background(), "policy.vt", 1, 100)
		assert.Nil(t, err)
		assert.Len(t, holders, 2)
		assert.Equal(t, "a", holders[0].Address)
		assert.Equal(t, "300", holders[0].Quantity)

		holders, err = client.GetTokenHolders(context.Background(), "policy.vt", 2, 100)
		assert.Nil(t, err)
		assert.Len(t, holders, 0)
	})
	t.Run("Unknown addresses hold nothing", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://indexer.test/v1/addresses/addr1/assets",
			httpmock.NewStringResponder(404, `{"message":"not found"}`))

		assets, err := client.GetAddressAssets(context.Background(), "addr1")
		assert.Nil(t, err)
		assert.Len(t, assets, 0)
	})
	t.Run("Returns address assets", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://indexer.test/v1/addresses/addr1/assets",
			httpmock.NewStringResponder(200, `{"assets":[{"unit":"policy.nft1","quantity":"1"}]}`))

		assets, err := client.GetAddressAssets(context.Background(), "addr1")
		assert.Nil(t, err)
		assert.Len(t, assets, 1)
		assert.Equal(t, "policy.nft1", assets[0].Unit)
	})
}
