package transactionService

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/config"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/internal/logger"
	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
)

func Test_TransactionService(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &config.ExternalServicesConfig{TransactionServiceUrl: "https://tx.test"}

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockHttpClient := &http.Client{
		Transport: httpmock.DefaultTransport,
	}
	client := NewClient(cfg, mockHttpClient, l)
	client.PollInterval = 10 * time.Millisecond

	t.Run("Build posts the outputs and returns the unsigned tx", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", "https://tx.test/v1/transactions/build",
			func(req *http.Request) (*http.Response, error) {
				body, _ := io.ReadAll(req.Body)
				parsed := &clientTypes.BuildTransactionRequest{}
				assert.Nil(t, json.Unmarshal(body, parsed))
				assert.Len(t, parsed.Outputs, 2)
				assert.Equal(t, "custody", parsed.ChangeAddress)
				return httpmock.NewStringResponse(200, `{"txHex":"84a4","fee":"180000"}`), nil
			},
		)

		tx, err := client.Build(context.Background(), &clientTypes.BuildTransactionRequest{
			Outputs: []clientTypes.TxOutput{
				{Address: "a", Amount: "100"},
				{Address: "b", Amount: "200"},
			},
			ChangeAddress: "custody",
		})
		assert.Nil(t, err)
		assert.Equal(t, "84a4", tx.TxHex)
		assert.Equal(t, "180000", tx.Fee)
	})
	t.Run("Submit returns the tx hash", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", "https://tx.test/v1/transactions/submit",
			httpmock.NewStringResponder(200, `{"txHash":"abc123"}`))

		hash, err := client.Submit(context.Background(), "84a4.sig")
		assert.Nil(t, err)
		assert.Equal(t, "abc123", hash)
	})
	t.Run("Submit surfaces a rejected transaction", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("POST", "https://tx.test/v1/transactions/submit",
			httpmock.NewStringResponder(400, `{"message":"insufficient funds for outputs"}`))

		_, err := client.Submit(context.Background(), "84a4.sig")
		assert.NotNil(t, err)
		assert.Contains(t, err.Error(), "insufficient funds")
	})
	t.Run("AwaitConfirmation polls until confirmed", func(t *testing.T) {
		httpmock.Reset()
		calls := 0
		httpmock.RegisterResponder("GET", "https://tx.test/v1/transactions/abc123/status",
			func(req *http.Request) (*http.Response, error) {
				calls++
				if calls == 1 {
					return httpmock.NewStringResponse(404, `{"message":"unknown tx"}`), nil
				}
				if calls == 2 {
					return httpmock.NewStringResponse(200, `{"txHash":"abc123","confirmed":false}`), nil
				}
				return httpmock.NewStringResponse(200, `{"txHash":"abc123","confirmed":true,"confirmations":1}`), nil
			},
		)

		confirmed, err := client.AwaitConfirmation(context.Background(), "abc123", 5*time.Second)
		assert.Nil(t, err)
		assert.True(t, confirmed)
		assert.Equal(t, 3, calls)
	})
	t.Run("AwaitConfirmation reports false on timeout", func(t *testing.T) {
		httpmock.Reset()
		httpmock.RegisterResponder("GET", "https://tx.test/v1/transactions/abc123/status",
			httpmock.NewStringResponder(200, `{"txHash":"abc123","confirmed":false}`))

		confirmed, err := client.AwaitConfirmation(context.Background(), "abc123", 50*time.Millisecond)
		assert.Nil(t, err)
		assert.False(t, confirmed)
	})
}
