// Package whep subscribes to a stream over WHEP (WebRTC-HTTP Egress Protocol)
// with a receive-only pion peer connection.
package whep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pion/webrtc/v4"
)

// PCConfigPath is where the broadcaster publishes its ICE configuration.
const PCConfigPath = "/api/pc-config"

// urls accepts both a single string and a list, like RTCIceServer.urls.
type urls []string

func (u *urls) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*u = urls{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("iceServers.urls: %w", err)
	}
	*u = many
	return nil
}

type iceServer struct {
	URLs       urls   `json:"urls"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

type pcConfig struct {
	ICEServers         []iceServer `json:"iceServers"`
	ICETransportPolicy string      `json:"iceTransportPolicy"`
}

// FetchPCConfig reads the peer connection configuration published under
// baseURL. A nil client uses http.DefaultClient.
func FetchPCConfig(ctx context.Context, client *http.Client, baseURL string) (webrtc.Configuration, error) {
	if client == nil {
		client = http.DefaultClient
	}

	url := strings.TrimSuffix(baseURL, "/") + PCConfigPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return webrtc.Configuration{}, fmt.Errorf("pc-config request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return webrtc.Configuration{}, fmt.Errorf("fetch pc-config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return webrtc.Configuration{}, fmt.Errorf("fetch pc-config: %w", &StatusError{Code: resp.StatusCode, Method: http.MethodGet})
	}

	var raw pcConfig
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return webrtc.Configuration{}, fmt.Errorf("decode pc-config: %w", err)
	}

	cfg := webrtc.Configuration{
		ICETransportPolicy: webrtc.NewICETransportPolicy(raw.ICETransportPolicy),
	}
	for _, s := range raw.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" || s.Credential != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		cfg.ICEServers = append(cfg.ICEServers, server)
	}
	return cfg, nil
}

// StatusError is an unexpected HTTP status from the broadcaster.
type StatusError struct {
	Method string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Method, e.Code, http.StatusText(e.Code))
}
