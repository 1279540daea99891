package testutil

import (
	"io"
	"net/http"
	"os"
	"sync"
)

// These functions allow us to mock http responses from the
// verification service and nsqd.

var EmptyHeaders = make(map[string]string, 0)

// JSONHeaders is what the verification service sends with a token.
var JSONHeaders = map[string]string{"Content-Type": "application/json"}

// Returns an http handler function that returns the contents
// of the specified file, along with the specified headers.
func HttpFileResponder(headers map[string]string, filePath string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w, headers)
		f, err := os.Open(filePath)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		io.Copy(w, f)
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that returns the specified
// string, along with the specified headers.
func HttpStringResponder(headers map[string]string, data string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w, headers)
		w.Write([]byte(data))
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that replies with the specified
// status code and body.
func HttpStatusResponder(status int, data string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(data))
	}
	return http.HandlerFunc(f)
}

// RecordedRequest is what a RecordingHandler saw.
type RecordedRequest struct {
	Method     string
	RequestURI string
	Header     http.Header
	Body       []byte
}

// RecordingHandler records every request it receives and replies
// with Status and Body.
type RecordingHandler struct {
	Status   int
	Body     string
	requests []RecordedRequest
	mutex    sync.Mutex
}

// NewRecordingHandler returns a handler that replies 200 with body.
func NewRecordingHandler(body string) *RecordingHandler {
	return &RecordingHandler{Status: http.StatusOK, Body: body}
}

func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()
	h.mutex.Lock()
	h.requests = append(h.requests, RecordedRequest{
		Method:     r.Method,
		RequestURI: r.RequestURI,
		Header:     r.Header.Clone(),
		Body:       body,
	})
	status := h.Status
	h.mutex.Unlock()
	w.WriteHeader(status)
	w.Write([]byte(h.Body))
}

// Requests returns a copy of the requests received so far.
func (h *RecordingHandler) Requests() []RecordedRequest {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return append([]RecordedRequest(nil), h.requests...)
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	if headers != nil {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
	}
}
