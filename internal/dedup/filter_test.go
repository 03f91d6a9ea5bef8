package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suprohub/novaprox/internal/dedup"
	"github.com/suprohub/novaprox/internal/model"
)

func endpoint(proto model.Protocol, host string, port int, cred string, opts map[string]string) *model.Endpoint {
	return &model.Endpoint{Protocol: proto, Host: host, Port: port, Credential: cred, Options: opts}
}

func TestApply(t *testing.T) {
	a := endpoint(model.ProtocolVLESS, "host1", 443, "uuid-a", map[string]string{"type": "ws"})
	aAgain := endpoint(model.ProtocolVLESS, "host1", 443, "uuid-a", map[string]string{"type": "grpc", "sni": "x"})
	b := endpoint(model.ProtocolTrojan, "host2", 443, "pass-b", nil)
	c := endpoint(model.ProtocolVLESS, "host1", 443, "uuid-c", nil)

	t.Run("removes canonical duplicates, keeps first-seen order", func(t *testing.T) {
		out := dedup.Apply([]*model.Endpoint{a, aAgain, b, c})
		assert.Equal(t, []*model.Endpoint{a, b, c}, out)
	})

	t.Run("idempotent", func(t *testing.T) {
		once := dedup.Apply([]*model.Endpoint{a, aAgain, b})
		twice := dedup.Apply(once)
		assert.Equal(t, once, twice)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, dedup.Apply(nil))
	})
}

func TestFilter_Seen(t *testing.T) {
	f := dedup.New()
	e := endpoint(model.ProtocolShadowsocks, "host3", 8388, "aes-256-gcm:pw", nil)

	assert.False(t, f.Seen(e))
	assert.True(t, f.Seen(e))
}
