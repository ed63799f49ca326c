package worker

import (
	"encoding/json"
	"net/http"
)

// Endpoint is the out-of-core worker-endpoint brief surface (spec.md §4.8):
// "workers expose HTTP GET /status -> {ok: bool}". The core engine only
// needs to poll Status for heartbeat monitoring; everything else about a
// remote worker process (identity, signing, lifecycle) lives in the
// collaborator that actually runs one.
type Endpoint interface {
	// Status reports whether the worker is currently healthy. An error
	// means the status could not be determined (e.g. the request failed)
	// and is treated the same as an unhealthy heartbeat by Monitor.
	Status() (ok bool, err error)
}

// HTTPEndpoint is an Endpoint backed by a remote worker's status URL,
// queried with a plain HTTP client.
type HTTPEndpoint struct {
	URL    string
	Client *http.Client
}

// NewHTTPEndpoint returns an HTTPEndpoint polling url with client. A nil
// client uses http.DefaultClient.
func NewHTTPEndpoint(url string, client *http.Client) *HTTPEndpoint {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEndpoint{URL: url, Client: client}
}

type statusResponse struct {
	OK bool `json:"ok"`
}

// Status implements Endpoint.
func (e *HTTPEndpoint) Status() (bool, error) {
	resp, err := e.Client.Get(e.URL)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.OK, nil
}

// StatusHandler is the server-side half of the brief surface: a worker
// process embeds this to answer GET /status with {"ok": true}.
func StatusHandler(isHealthy func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{OK: isHealthy()})
	}
}
