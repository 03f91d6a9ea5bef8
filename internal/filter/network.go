// Package filter runs the cheap network checks that gate the expensive
// runtime probe: a raw TCP dial, and a TLS handshake when the endpoint's
// transport expects one.
package filter

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/suprohub/novaprox/internal/model"
)

type Pipeline struct {
	Timeout time.Duration
}

func NewPipeline(timeout time.Duration) *Pipeline {
	return &Pipeline{Timeout: timeout}
}

// Check dials the endpoint directly and reports the first failure.
// Returns model.FailureNone when every applicable check passes.
func (f *Pipeline) Check(e *model.Endpoint) model.FailureReason {
	log := slog.With("target", e.Addr(), "protocol", e.Protocol)

	start := time.Now()
	if !f.checkTCP(e) {
		log.Debug("tcp_connect_failed", "duration", time.Since(start))
		return model.FailureConnect
	}

	if sni, ok := tlsServerName(e); ok {
		startTLS := time.Now()
		if !f.checkTLS(e, sni) {
			log.Debug("tls_handshake_failed",
				"sni", sni,
				"duration", time.Since(startTLS),
			)
			return model.FailureHandshake
		}
		log.Debug("network_checks_passed", "duration", time.Since(start))
	} else {
		log.Debug("network_checks_passed", "note", "tls_skipped")
	}

	return model.FailureNone
}

// tlsServerName decides whether the transport expects a TLS hello and
// which server name to send.
func tlsServerName(e *model.Endpoint) (string, bool) {
	security := e.Option("security")
	if security == "" {
		security = e.Option("tls") // vmess spells it "tls"
	}
	switch security {
	case "tls", "reality", "xtls":
	default:
		if e.Option("sni") == "" {
			return "", false
		}
	}

	if sni := e.Option("sni"); sni != "" {
		return sni, true
	}
	return e.Host, true
}

func (f *Pipeline) checkTCP(e *model.Endpoint) bool {
	conn, err := net.DialTimeout("tcp", e.Addr(), f.Timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (f *Pipeline) checkTLS(e *model.Endpoint, sni string) bool {
	dialer := &net.Dialer{Timeout: f.Timeout}

	// Self-signed and Reality servers are expected; we only care whether
	// the far end speaks TLS at all.
	conf := &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         sni,
	}

	conn, err := tls.DialWithDialer(dialer, "tcp", e.Addr(), conf)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
