package prober

import (
	"encoding/json"
	"fmt"

	"github.com/gvcgo/vpnparser/pkgs/outbound"

	"github.com/suprohub/novaprox/internal/model"
)

// SingBoxConfig is the minimal structure Sing-box expects
type SingBoxConfig struct {
	Log       LogConfig       `json:"log"`
	Inbounds  []InboundConfig `json:"inbounds"`
	Outbounds []interface{}   `json:"outbounds"` // Interface because structure varies
}

type LogConfig struct {
	Level    string `json:"level"`
	Output   string `json:"output,omitempty"`
	Disabled bool   `json:"disabled"`
}

type InboundConfig struct {
	Type       string `json:"type"`
	Tag        string `json:"tag"`
	Listen     string `json:"listen"`
	ListenPort int    `json:"listen_port"`
}

// GenerateConfig creates a JSON config scoped to one endpoint: a local
// mixed inbound on localPort routed through the endpoint's outbound.
func GenerateConfig(e *model.Endpoint, localPort int) ([]byte, error) {
	item := outbound.ParseRawUriToProxyItem(e.Raw, outbound.SingBox)
	if item == nil {
		return nil, fmt.Errorf("failed to parse link for config generation")
	}

	var sbOutbound interface{}
	if err := json.Unmarshal([]byte(item.GetOutbound()), &sbOutbound); err != nil {
		return nil, fmt.Errorf("failed to parse sing-box outbound json: %w", err)
	}

	config := SingBoxConfig{
		Log: LogConfig{
			Level:    "panic", // Silence all logs to keep console clean
			Disabled: true,
		},
		Inbounds: []InboundConfig{
			{
				Type:       "mixed", // Supports both SOCKS5 and HTTP
				Tag:        "in-local",
				Listen:     "127.0.0.1",
				ListenPort: localPort,
			},
		},
		Outbounds: []interface{}{
			sbOutbound, // The Endpoint being probed
			map[string]string{
				"type": "direct",
				"tag":  "direct",
			},
		},
	}

	return json.MarshalIndent(config, "", "  ")
}
