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

	"github.com/ipcollateral/lending-services/models/common"
)

// NSQClient publishes messages to nsqd over its HTTP interface.
//
// Note that this client provides write access to the queue, so we can
// add things. It does not provide read access. The workers do the
// reading.
type NSQClient struct {
	URL        string
	httpClient *http.Client
}

// NewNSQClient returns a new NSQ client that posts to the nsqd HTTP
// address at url, which usually ends with :4151.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{
		URL:        strings.TrimRight(url, "/"),
		httpClient: http.DefaultClient,
	}
}

// PublishJSON serializes v and posts it to the specified topic.
func (client *NSQClient) PublishJSON(ctx context.Context, topic string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("Cannot serialize message for topic %s: %v", topic, err)
	}
	return client.Publish(ctx, topic, data)
}

// Publish posts data to the specified topic.
func (client *NSQClient) Publish(ctx context.Context, topic string, data []byte) error {
	pubURL := fmt.Sprintf("%s/pub?topic=%s", client.URL, url.QueryEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pubURL, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.httpClient.Do(req)
	if err != nil {
		return common.NewHttpError(
			fmt.Sprintf("Nsqd returned an error when queuing data: %v", err),
			err, http.MethodPost, pubURL, 0)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return common.NewHttpError(
			fmt.Sprintf("nsqd returned status code %d when attempting to queue data. "+
				"Response body: %s", resp.StatusCode, bodyText),
			nil, http.MethodPost, pubURL, resp.StatusCode)
	}
	return nil
}
