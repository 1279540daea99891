package network

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ipcollateral/lending-services/models/lending"
)

// VerificationResponse wraps the result of one call to the
// verification service.
type VerificationResponse struct {
	// The HTTP request that was (or would have been) sent to the
	// verification service. This is useful for logging and debugging.
	Request *http.Request

	// The HTTP Response from the server. Do not try to read
	// Response.Body, since it's already been read and the stream has
	// been closed. Use the RawResponseData() method instead.
	Response *http.Response

	// The error, if any, that occurred while processing this
	// request.
	Error error

	token       *lending.StatusResponse
	hasBeenRead bool
	data        []byte
}

// Creates a new VerificationResponse and returns a pointer to it.
func NewVerificationResponse() *VerificationResponse {
	return &VerificationResponse{}
}

// Returns the raw body of the HTTP response as a byte slice.
// The return value may be nil.
func (resp *VerificationResponse) RawResponseData() ([]byte, error) {
	if !resp.hasBeenRead {
		resp.readResponse()
	}
	return resp.data, resp.Error
}

// Reads the body of an HTTP response object and closes the stream.
// The body MUST be closed, or you'll wind up with a lot of open
// network connections.
func (resp *VerificationResponse) readResponse() {
	if !resp.hasBeenRead && resp.Response != nil && resp.Response.Body != nil {
		resp.data, resp.Error = io.ReadAll(resp.Response.Body)
		resp.Response.Body.Close()
		resp.hasBeenRead = true
	}
}

func (resp *VerificationResponse) decodeToken() {
	token := &lending.StatusResponse{}
	err := json.Unmarshal(resp.data, token)
	if err != nil {
		resp.Error = fmt.Errorf("Cannot parse token JSON: %v", err)
		return
	}
	resp.token = token
}

// ObjectNotFound returns true if the service replied with 404.
func (resp *VerificationResponse) ObjectNotFound() bool {
	return resp.Response != nil && resp.Response.StatusCode == http.StatusNotFound
}

// Token returns the token parsed from the response body, or nil.
func (resp *VerificationResponse) Token() *lending.StatusResponse {
	return resp.token
}
