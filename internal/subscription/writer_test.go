package subscription_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suprohub/novaprox/internal/model"
	"github.com/suprohub/novaprox/internal/subscription"
)

func success(proto model.Protocol, host string, seq int, latency time.Duration) model.ProbeResult {
	return model.ProbeResult{
		Endpoint: &model.Endpoint{
			Protocol:   proto,
			Host:       host,
			Port:       443,
			Credential: "cred-" + host,
		},
		Seq:     seq,
		Latency: latency,
		At:      time.Now(),
	}
}

func failure(proto model.Protocol, host string, seq int, reason model.FailureReason) model.ProbeResult {
	res := success(proto, host, seq, 0)
	res.Reason = reason
	return res
}

func TestBuild(t *testing.T) {
	t.Run("keeps successes sorted by latency across protocols", func(t *testing.T) {
		// Two canonically distinct endpoints: the slower VLESS was
		// submitted first, the faster Trojan second.
		batch := model.ProbeBatch{
			success(model.ProtocolVLESS, "host1", 0, 50*time.Millisecond),
			success(model.ProtocolTrojan, "host2", 1, 30*time.Millisecond),
			failure(model.ProtocolVMess, "host3", 2, model.FailureTimeout),
		}

		set := subscription.Build(batch)

		require.Len(t, set.All, 2)
		assert.Equal(t, "host2", set.All[0].Endpoint.Host)
		assert.Equal(t, "host1", set.All[1].Endpoint.Host)
		assert.Len(t, set.Groups[model.ProtocolVLESS], 1)
		assert.Len(t, set.Groups[model.ProtocolTrojan], 1)
		assert.Empty(t, set.Groups[model.ProtocolVMess])
	})

	t.Run("latency ties keep submission order", func(t *testing.T) {
		batch := model.ProbeBatch{
			success(model.ProtocolVLESS, "later", 5, 40*time.Millisecond),
			success(model.ProtocolVLESS, "earlier", 2, 40*time.Millisecond),
		}

		set := subscription.Build(batch)
		require.Len(t, set.All, 2)
		assert.Equal(t, "earlier", set.All[0].Endpoint.Host)
		assert.Equal(t, "later", set.All[1].Endpoint.Host)
	})

	t.Run("all failures yield an empty set", func(t *testing.T) {
		batch := model.ProbeBatch{
			failure(model.ProtocolVLESS, "host1", 0, model.FailureConnect),
		}
		set := subscription.Build(batch)
		assert.Empty(t, set.All)
	})
}

func TestWriter_Publish(t *testing.T) {
	dir := t.TempDir()
	w := subscription.NewWriter(dir)

	batch := model.ProbeBatch{
		success(model.ProtocolVLESS, "host1", 0, 50*time.Millisecond),
		success(model.ProtocolTrojan, "host2", 1, 30*time.Millisecond),
	}
	require.NoError(t, w.Publish(subscription.Build(batch)))

	t.Run("writes every protocol file plus the combined file", func(t *testing.T) {
		for _, name := range []string{"vless.txt", "vmess.txt", "shadowsocks.txt", "trojan.txt", "all.txt"} {
			_, err := os.Stat(filepath.Join(dir, name))
			assert.NoError(t, err, name)
		}
	})

	t.Run("combined file is ranked by latency", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, subscription.AllFile))
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "trojan://")
		assert.Contains(t, lines[0], "%5B30ms%5D")
		assert.Contains(t, lines[1], "vless://")
		assert.Contains(t, lines[1], "%5B50ms%5D")
	})

	t.Run("protocols without survivors are written empty", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "vmess.txt"))
		require.NoError(t, err)
		assert.Empty(t, data)
	})

	t.Run("no temporary files survive", func(t *testing.T) {
		leftovers, err := filepath.Glob(filepath.Join(dir, ".*tmp*"))
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})

	t.Run("republish overwrites previous content", func(t *testing.T) {
		require.NoError(t, w.Publish(subscription.Build(model.ProbeBatch{})))

		data, err := os.ReadFile(filepath.Join(dir, subscription.AllFile))
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestWriter_Publish_EmptySet(t *testing.T) {
	dir := t.TempDir()
	w := subscription.NewWriter(dir)

	require.NoError(t, w.Publish(subscription.Build(nil)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}
