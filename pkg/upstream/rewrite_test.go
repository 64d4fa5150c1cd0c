package upstream

import (
	"testing"

	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteProxyAccessAppliesWhenRedirectPresent(t *testing.T) {
	s := &Session{cfg: Config{Host: "10.0.0.1"}}
	in := wire.Sentence{
		wire.Word("/ip/proxy/access/add"),
		wire.Word("=dst-host=example.com"),
		wire.Word("=redirect-to=http://example.org"),
	}
	out, err := s.applyRewrites(in)
	require.NoError(t, err)
	assert.Equal(t, wire.Word("/ip/proxy/access/add"), out[0])
	assert.Contains(t, out, wire.Word("=dst-host=example.com"))
	assert.Contains(t, out, wire.Word("=action=redirect"))
	assert.Contains(t, out, wire.Word("=action-data=http://example.org"))
	assert.NotContains(t, out, wire.Word("=redirect-to=http://example.org"))
}

func TestRewriteProxyAccessUnchangedWithoutRedirect(t *testing.T) {
	s := &Session{cfg: Config{Host: "10.0.0.1"}}
	in := wire.Sentence{
		wire.Word("/ip/proxy/access/add"),
		wire.Word("=dst-host=example.com"),
	}
	out, err := s.applyRewrites(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRewriteFirewallDstAddressLeavesNumericIPAlone(t *testing.T) {
	s := &Session{cfg: Config{Host: "10.0.0.1"}}
	in := wire.Sentence{
		wire.Word("/ip/firewall/filter/add"),
		wire.Word("=dst-address=192.0.2.1"),
	}
	out, err := s.applyRewrites(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRewritePPPLocalAddressOverridesClientValue(t *testing.T) {
	s := &Session{cfg: Config{Host: "10.0.0.1"}}
	in := wire.Sentence{
		wire.Word("/ppp/profile/add"),
		wire.Word("=name=default"),
		wire.Word("=local-address=192.168.1.1"),
	}
	out, err := s.applyRewrites(in)
	require.NoError(t, err)
	assert.Equal(t, wire.Word("=local-address=10.0.0.1"), out[2])
}

func TestRewritePassesThroughUnrelatedCommands(t *testing.T) {
	s := &Session{cfg: Config{Host: "10.0.0.1"}}
	in := wire.Sentence{wire.Word("/interface/print")}
	out, err := s.applyRewrites(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
