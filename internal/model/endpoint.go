package model

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type Protocol string

const (
	ProtocolVLESS       Protocol = "vless"
	ProtocolVMess       Protocol = "vmess"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolTrojan      Protocol = "trojan"
)

// Protocols lists every protocol in the order output files are published.
var Protocols = []Protocol{ProtocolVLESS, ProtocolVMess, ProtocolShadowsocks, ProtocolTrojan}

// Scheme returns the URI scheme prefix used on the wire.
func (p Protocol) Scheme() string {
	if p == ProtocolShadowsocks {
		return "ss"
	}
	return string(p)
}

// Endpoint is the canonical representation of one proxy configuration.
// Values are immutable after parsing.
type Endpoint struct {
	Protocol   Protocol
	Host       string
	Port       int
	Credential string            // uuid / password / "method:password", protocol-specific
	Options    map[string]string // transport options (query params or vmess fields)
	Name       string            // display label from the URI fragment / vmess "ps"
	Raw        string            // original link as read from the feed
}

// Fingerprint digests the credential material for deduplication.
func (e *Endpoint) Fingerprint() string {
	sum := sha256.Sum256([]byte(e.Credential))
	return hex.EncodeToString(sum[:8])
}

// Key is the canonical identity: endpoints sharing it are duplicates
// even when transport options or raw links differ.
func (e *Endpoint) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", e.Protocol, strings.ToLower(e.Host), e.Port, e.Fingerprint())
}

func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Option returns a transport option or "" when unset.
func (e *Endpoint) Option(key string) string {
	return e.Options[key]
}

// URI serializes the endpoint back to its link form, without a name
// fragment. Reparsing the result yields an equivalent Endpoint.
func (e *Endpoint) URI() string {
	switch e.Protocol {
	case ProtocolVMess:
		return e.vmessURI()
	case ProtocolShadowsocks:
		return e.shadowsocksURI()
	default:
		return e.userinfoURI()
	}
}

func (e *Endpoint) userinfoURI() string {
	var b strings.Builder
	b.WriteString(e.Protocol.Scheme())
	b.WriteString("://")
	b.WriteString(url.PathEscape(e.Credential))
	b.WriteByte('@')
	b.WriteString(e.Addr())
	if q := encodeOptions(e.Options); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func (e *Endpoint) shadowsocksURI() string {
	userinfo := base64.RawURLEncoding.EncodeToString([]byte(e.Credential))
	uri := "ss://" + userinfo + "@" + e.Addr()
	if q := encodeOptions(e.Options); q != "" {
		uri += "?" + q
	}
	return uri
}

// vmessURI rebuilds the base64(JSON) form. Field names follow the common
// v2rayN share format; any option not recognized here was never parsed in.
func (e *Endpoint) vmessURI() string {
	obj := map[string]any{
		"v":    "2",
		"ps":   e.Name,
		"add":  e.Host,
		"port": strconv.Itoa(e.Port),
		"id":   e.Credential,
	}
	for k, v := range e.Options {
		obj[k] = v
	}
	data, _ := json.Marshal(obj)
	return "vmess://" + base64.StdEncoding.EncodeToString(data)
}

func encodeOptions(opts map[string]string) string {
	if len(opts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(opts[k]))
	}
	return b.String()
}
