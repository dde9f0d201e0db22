package extraction

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func Test_Extraction(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &config.ExternalServicesConfig{ExtractionServiceUrl: "https://extract.test"}

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	client := NewClient(cfg, &http.Client{Transport: httpmock.DefaultTransport}, l)

	t.Run("Extracts units to the destination", func(t *testing.T) {
		httpmock.RegisterResponder("POST", "https://extract.test/v1/vaults/vault-1/extract",
			func(req *http.Request) (*http.Response, error) {
				body, _ := io.ReadAll(req.Body)
				assert.Contains(t, string(body), `"destination":"custody"`)
				assert.Contains(t, string(body), `"unit":"policy.nft1"`)
				return httpmock.NewStringResponse(200, `{"txHash":"ext-1"}`), nil
			},
		)

		hash, err := client.ExtractAssets(context.Background(), "vault-1",
			[]clientTypes.AssetAmount{{Unit: "policy.nft1", Quantity: "1"}}, "custody")
		assert.Nil(t, err)
		assert.Equal(t, "ext-1", hash)
	})
	t.Run("Nothing to extract is an error", func(t *testing.T) {
		_, err := client.ExtractAssets(context.Background(), "vault-1", nil, "custody")
		assert.NotNil(t, err)
	})
}
