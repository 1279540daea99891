package network

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

	"github.com/ipcollateral/lending-services/models/common"
	"github.com/ipcollateral/lending-services/models/lending"
	"github.com/ipcollateral/lending-services/util"
	"github.com/op/go-logging"
	"golang.org/x/time/rate"
)

// VerificationClient talks to the external content verification
// service. It registers tokens and reads back their infringement
// status.
type VerificationClient struct {
	HostURL    string
	Network    string
	APIKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.Logger
}

// NewVerificationClient creates a new verification client. Requests
// are spaced at least rateInterval apart, and each one gives up after
// timeout. A rateInterval of zero disables throttling.
func NewVerificationClient(hostURL, network, apiKey string, timeout, rateInterval time.Duration, logger *logging.Logger) (*VerificationClient, error) {
	if !util.TestsAreRunning() && apiKey == "" {
		return nil, fmt.Errorf("Verification API key cannot be empty")
	}
	if _, err := url.Parse(hostURL); err != nil || hostURL == "" {
		return nil, fmt.Errorf("Invalid verification service URL '%s'", hostURL)
	}
	limit := rate.Inf
	if rateInterval > 0 {
		limit = rate.Every(rateInterval)
	}
	transport := &http.Transport{
		DisableKeepAlives: false,
		ForceAttemptHTTP2: true,
		IdleConnTimeout:   90 * time.Second,
	}
	return &VerificationClient{
		HostURL:    strings.TrimRight(hostURL, "/"),
		Network:    network,
		APIKey:     apiKey,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}, nil
}

// RegisterToken submits a token and its media for verification. A 2xx
// reply with an empty or unreadable body is still a registration; the
// response just carries no token.
func (client *VerificationClient) RegisterToken(ctx context.Context, token *lending.TokenRequest) *VerificationResponse {
	resp := NewVerificationResponse()
	data, err := json.Marshal(token)
	if err != nil {
		resp.Error = err
		return resp
	}
	absoluteURL := client.BuildURL(fmt.Sprintf("/%s/token", client.Network))
	client.DoRequest(ctx, resp, http.MethodPost, absoluteURL, bytes.NewBuffer(data))
	if resp.Error != nil || len(bytes.TrimSpace(resp.data)) == 0 {
		return resp
	}
	resp.decodeToken()
	if resp.Error != nil {
		client.logger.Warningf("Registered %s but could not read the reply: %v", token.ID, resp.Error)
		resp.Error = nil
	}
	return resp
}

// Register submits a token and returns the service's initial view of
// it.
func (client *VerificationClient) Register(ctx context.Context, token *lending.TokenRequest) (*lending.StatusResponse, error) {
	resp := client.RegisterToken(ctx, token)
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Token(), nil
}

// GetToken returns the token with the specified id, including its
// infringement status.
func (client *VerificationClient) GetToken(ctx context.Context, id string) *VerificationResponse {
	resp := NewVerificationResponse()
	absoluteURL := client.BuildURL(fmt.Sprintf("/%s/token/%s", client.Network, EscapeTokenID(id)))
	client.DoRequest(ctx, resp, http.MethodGet, absoluteURL, nil)
	if resp.Error != nil {
		return resp
	}
	resp.decodeToken()
	return resp
}

// FetchStatus returns the current status of the token with the
// specified id. A token the service doesn't know yet is an error.
func (client *VerificationClient) FetchStatus(ctx context.Context, id string) (*lending.StatusResponse, error) {
	resp := client.GetToken(ctx, id)
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Token(), nil
}

// BuildURL appends relativeURL to the service's base URL.
func (client *VerificationClient) BuildURL(relativeURL string) string {
	return client.HostURL + relativeURL
}

// NewJSONRequest returns a new request with headers indicating JSON
// request and response formats and the service's bearer token.
//
// Token ids contain colons, which must reach the server escaped, so
// the path is set as an opaque URL that net/url won't rewrite.
func (client *VerificationClient) NewJSONRequest(ctx context.Context, method, absoluteURL string, requestData io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, absoluteURL, requestData)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Authorization", "Bearer "+client.APIKey)

	parsedURL, err := url.Parse(absoluteURL)
	if err != nil {
		return nil, err
	}
	opaqueURL := strings.TrimPrefix(absoluteURL, parsedURL.Scheme+"://"+parsedURL.Host)
	req.URL = &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
		Opaque: opaqueURL,
	}
	return req, nil
}

// DoRequest waits for the rate limiter, issues an HTTP request, reads
// the response, and closes the connection to the remote server.
//
// If an error occurs, it will be recorded in resp.Error as a
// *common.HttpError.
func (client *VerificationClient) DoRequest(ctx context.Context, resp *VerificationResponse, method, absoluteURL string, requestData io.Reader) {
	if err := client.limiter.Wait(ctx); err != nil {
		resp.Error = common.NewHttpError("Request cancelled while throttled", err, method, absoluteURL, 0)
		return
	}
	request, err := client.NewJSONRequest(ctx, method, absoluteURL, requestData)
	resp.Request = request
	if err != nil {
		resp.Error = common.NewHttpError(err.Error(), err, method, absoluteURL, 0)
		return
	}

	reqTime := time.Now()
	response, err := client.httpClient.Do(request)
	client.logger.Infof("%s %s completed in %s", method, absoluteURL, time.Since(reqTime))
	if err != nil {
		resp.Error = common.NewHttpError(
			fmt.Sprintf("%s %s: %s", method, absoluteURL, err.Error()),
			err, method, absoluteURL, 0)
		return
	}
	resp.Response = response
	resp.readResponse()

	if resp.Error == nil && response.StatusCode >= 400 {
		resp.Error = common.NewHttpError(
			fmt.Sprintf("Server returned status code %d. %s %s - Body: %s",
				response.StatusCode, method, absoluteURL, util.Truncate(string(resp.data), 500)),
			nil, method, absoluteURL, response.StatusCode)
	}
}

// EscapeTokenID escapes a token id for use as a single path segment.
func EscapeTokenID(id string) string {
	encoded := url.QueryEscape(id)
	return strings.Replace(encoded, "+", "%20", -1)
}
