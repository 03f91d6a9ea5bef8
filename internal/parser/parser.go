// Package parser turns proxy share links into model.Endpoint values.
// It is pure: no network, no filesystem, so every scheme is testable
// against literal fixture strings.
package parser

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/suprohub/novaprox/internal/model"
)

type Reason string

const (
	ReasonUnsupportedScheme Reason = "unsupported_scheme"
	ReasonMalformedField    Reason = "malformed_field"
)

// ParseError is per-line and recoverable: callers skip the line and count it.
type ParseError struct {
	Reason Reason
	Field  string
	Raw    string
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse: %s (%s)", e.Reason, e.Field)
	}
	return fmt.Sprintf("parse: %s", e.Reason)
}

func malformed(field, raw string) *ParseError {
	return &ParseError{Reason: ReasonMalformedField, Field: field, Raw: raw}
}

// Parse decodes one line of the feed into an Endpoint.
func Parse(line string) (*model.Endpoint, error) {
	// Some feeds carry HTML-escaped ampersands.
	line = strings.ReplaceAll(strings.TrimSpace(line), "amp;", "")

	switch {
	case strings.HasPrefix(line, "vless://"):
		return parseUserinfoLink(line, model.ProtocolVLESS, "uuid")
	case strings.HasPrefix(line, "trojan://"):
		return parseUserinfoLink(line, model.ProtocolTrojan, "password")
	case strings.HasPrefix(line, "vmess://"):
		return parseVMess(line)
	case strings.HasPrefix(line, "ss://"):
		return parseShadowsocks(line)
	default:
		return nil, &ParseError{Reason: ReasonUnsupportedScheme, Field: schemeOf(line), Raw: line}
	}
}

func schemeOf(line string) string {
	if i := strings.Index(line, "://"); i > 0 {
		return line[:i]
	}
	return ""
}

// parseUserinfoLink handles the vless:// and trojan:// shapes:
// scheme://credential@host:port?options#name
func parseUserinfoLink(line string, proto model.Protocol, credField string) (*model.Endpoint, error) {
	u, err := url.Parse(line)
	if err != nil {
		return nil, malformed("uri", line)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, malformed(credField, line)
	}
	if u.Hostname() == "" {
		return nil, malformed("host", line)
	}
	port, err := parsePort(u.Port())
	if err != nil {
		return nil, malformed("port", line)
	}

	return &model.Endpoint{
		Protocol:   proto,
		Host:       u.Hostname(),
		Port:       port,
		Credential: u.User.Username(),
		Options:    flattenQuery(u.Query()),
		Name:       u.Fragment,
		Raw:        line,
	}, nil
}

// vmessFields is the v2rayN share format carried as base64(JSON).
type vmessFields struct {
	Ps   string `json:"ps"`
	Add  string `json:"add"`
	Port any    `json:"port"`
	ID   string `json:"id"`
	Aid  any    `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	ALPN string `json:"alpn"`
	FP   string `json:"fp"`
}

func parseVMess(line string) (*model.Endpoint, error) {
	payload, err := decodeBase64(strings.TrimPrefix(line, "vmess://"))
	if err != nil {
		return nil, malformed("base64", line)
	}

	var cfg vmessFields
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, malformed("json", line)
	}
	if cfg.Add == "" {
		return nil, malformed("add", line)
	}
	if cfg.ID == "" {
		return nil, malformed("id", line)
	}
	port, err := parsePort(anyToString(cfg.Port))
	if err != nil {
		return nil, malformed("port", line)
	}

	opts := map[string]string{}
	for k, v := range map[string]string{
		"aid": anyToString(cfg.Aid), "scy": cfg.Scy, "net": cfg.Net,
		"type": cfg.Type, "host": cfg.Host, "path": cfg.Path,
		"tls": cfg.TLS, "sni": cfg.SNI, "alpn": cfg.ALPN, "fp": cfg.FP,
	} {
		if v != "" {
			opts[k] = v
		}
	}

	return &model.Endpoint{
		Protocol:   model.ProtocolVMess,
		Host:       cfg.Add,
		Port:       port,
		Credential: cfg.ID,
		Options:    opts,
		Name:       cfg.Ps,
		Raw:        line,
	}, nil
}

// parseShadowsocks accepts both SIP002 (ss://base64(method:pass)@host:port)
// and the legacy fully-encoded form (ss://base64(method:pass@host:port)).
func parseShadowsocks(line string) (*model.Endpoint, error) {
	payload := strings.TrimPrefix(line, "ss://")

	name := ""
	if i := strings.IndexByte(payload, '#'); i >= 0 {
		name, _ = url.QueryUnescape(payload[i+1:])
		payload = payload[:i]
	}
	rawQuery := ""
	if i := strings.IndexByte(payload, '?'); i >= 0 {
		rawQuery = payload[i+1:]
		payload = payload[:i]
	}

	var credential, hostport string
	if i := strings.LastIndexByte(payload, '@'); i >= 0 {
		decoded, err := decodeBase64(payload[:i])
		if err != nil {
			// Plain "method:password" userinfo, possibly percent-encoded.
			plain, uerr := url.QueryUnescape(payload[:i])
			if uerr != nil || !strings.Contains(plain, ":") {
				return nil, malformed("userinfo", line)
			}
			decoded = []byte(plain)
		}
		credential = string(decoded)
		hostport = payload[i+1:]
	} else {
		decoded, err := decodeBase64(payload)
		if err != nil {
			return nil, malformed("base64", line)
		}
		i := strings.LastIndexByte(string(decoded), '@')
		if i < 0 {
			return nil, malformed("userinfo", line)
		}
		credential = string(decoded[:i])
		hostport = string(decoded[i+1:])
	}

	if !strings.Contains(credential, ":") {
		return nil, malformed("userinfo", line)
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil || host == "" {
		return nil, malformed("host", line)
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, malformed("port", line)
	}

	opts := map[string]string{}
	if rawQuery != "" {
		if q, err := url.ParseQuery(rawQuery); err == nil {
			opts = flattenQuery(q)
		}
	}

	return &model.Endpoint{
		Protocol:   model.ProtocolShadowsocks,
		Host:       host,
		Port:       port,
		Credential: credential,
		Options:    opts,
		Name:       name,
		Raw:        line,
	}, nil
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing port")
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return port, nil
}

func anyToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return fmt.Sprint(t)
	}
}

func flattenQuery(q url.Values) map[string]string {
	opts := make(map[string]string, len(q))
	for k := range q {
		opts[k] = q.Get(k)
	}
	return opts
}

// decodeBase64 tolerates the padding and alphabet variants seen in feeds.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("invalid base64")
}
