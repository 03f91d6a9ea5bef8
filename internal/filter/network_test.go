package filter_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprohub/novaprox/internal/filter"
	"github.com/suprohub/novaprox/internal/model"
)

func listen(t *testing.T) (*net.TCPListener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	return l.(*net.TCPListener), l.Addr().(*net.TCPAddr).Port
}

func TestCheck_TCPOnly(t *testing.T) {
	_, port := listen(t)
	f := filter.NewPipeline(time.Second)

	e := &model.Endpoint{
		Protocol:   model.ProtocolVLESS,
		Host:       "127.0.0.1",
		Port:       port,
		Credential: "uuid",
		Options:    map[string]string{}, // no TLS expected, plain transport
	}

	assert.Equal(t, model.FailureNone, f.Check(e))
}

func TestCheck_ClosedPortIsConnectFailure(t *testing.T) {
	l, port := listen(t)
	l.Close()

	f := filter.NewPipeline(500 * time.Millisecond)
	e := &model.Endpoint{
		Protocol:   model.ProtocolTrojan,
		Host:       "127.0.0.1",
		Port:       port,
		Credential: "pw",
	}

	assert.Equal(t, model.FailureConnect, f.Check(e))
}

func TestCheck_PlainListenerFailsTLSHandshake(t *testing.T) {
	_, port := listen(t)

	f := filter.NewPipeline(500 * time.Millisecond)
	e := &model.Endpoint{
		Protocol:   model.ProtocolVLESS,
		Host:       "127.0.0.1",
		Port:       port,
		Credential: "uuid",
		Options:    map[string]string{"security": "tls", "sni": "example.com"},
	}

	assert.Equal(t, model.FailureHandshake, f.Check(e))
}
