package serviceClient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/L4VA-Technologies-Inc/l4va-api-sub000/pkg/clients/clientTypes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var backoffSchedule = []time.Duration{
	1 * time.Second,
	3 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// ServiceClient performs JSON requests against one of the external services.
type ServiceClient struct {
	Service string
	BaseUrl string
	ApiKey  string

	httpClient *http.Client
	Logger     *zap.Logger

	// Backoff overrides the default schedule used when the service is rate limiting or unavailable
	Backoff []time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func NewServiceClient(service string, baseUrl string, apiKey string, hc *http.Client, l *zap.Logger) *ServiceClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &ServiceClient{
		Service:    service,
		BaseUrl:    strings.TrimRight(baseUrl, "/"),
		ApiKey:     apiKey,
		httpClient: hc,
		Logger:     l,
		Backoff:    backoffSchedule,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SetSleep replaces the function used to wait between retries.
func (sc *ServiceClient) SetSleep(f func(ctx context.Context, d time.Duration) error) {
	sc.sleep = f
}

func (sc *ServiceClient) buildUrl(path string, query url.Values) string {
	fullUrl := sc.BaseUrl + path
	if len(query) > 0 {
		fullUrl = fmt.Sprintf("%s?%s", fullUrl, query.Encode())
	}
	return fullUrl
}

func (sc *ServiceClient) makeRequest(ctx context.Context, method string, path string, query url.Values, body any) (int, []byte, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, errors.Wrap(err, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, sc.buildUrl(path, query), reqBody)
	if err != nil {
		sc.Logger.Sugar().Errorw("Failed to create the HTTP request",
			zap.String("service", sc.Service),
			zap.Error(err),
		)
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	if sc.ApiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.ApiKey))
	}

	res, err := sc.httpClient.Do(req)
	if err != nil {
		sc.Logger.Sugar().Errorw("Failed to perform the HTTP request",
			zap.String("service", sc.Service),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, nil, err
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		sc.Logger.Sugar().Errorw("Failed to read the HTTP response",
			zap.String("service", sc.Service),
			zap.Error(err),
		)
		return res.StatusCode, nil, err
	}
	return res.StatusCode, bodyBytes, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func (sc *ServiceClient) apiError(status int, body []byte) *clientTypes.ApiError {
	parsed := &errorBody{}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, parsed); err == nil {
		if parsed.Message != "" {
			msg = parsed.Message
		} else if parsed.Error != "" {
			msg = parsed.Error
		}
	}
	return &clientTypes.ApiError{
		Service:    sc.Service,
		StatusCode: status,
		Message:    msg,
	}
}

// Do performs the request, retrying with backoff while the service is rate limiting or
// unavailable, and decodes a 2xx response into out when out is not nil.
func (sc *ServiceClient) Do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	for i := 0; ; i++ {
		status, resBody, err := sc.makeRequest(ctx, method, path, query, body)
		if err != nil {
			return errors.Wrapf(err, "%s request %s %s failed", sc.Service, method, path)
		}

		if status >= 200 && status < 300 {
			if out == nil || len(resBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(resBody, out); err != nil {
				sc.Logger.Sugar().Errorw("Failed to parse json from the response",
					zap.String("service", sc.Service),
					zap.String("path", path),
					zap.Error(err),
				)
				return errors.Wrapf(err, "failed to decode %s response", sc.Service)
			}
			sc.Logger.Sugar().Debugw("Successfully fetched data",
				zap.String("service", sc.Service),
				zap.String("path", path),
			)
			return nil
		}

		apiErr := sc.apiError(status, resBody)
		if !retryable(status) || i >= len(sc.Backoff) {
			return apiErr
		}

		backoff := sc.Backoff[i]
		sc.Logger.Sugar().Infow("Service unavailable or rate limited, backing off",
			zap.String("service", sc.Service),
			zap.Int("status", status),
			zap.Duration("backoff", backoff),
		)
		if err := sc.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// IsStatus reports whether err is an ApiError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *clientTypes.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == status
	}
	return false
}
