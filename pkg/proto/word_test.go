package proto

import (
	"testing"

	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
	"github.com/stretchr/testify/assert"
)

func TestIsRequestIsReply(t *testing.T) {
	assert.True(t, IsRequest(wire.Word("/login")))
	assert.False(t, IsRequest(wire.Word("!done")))
	assert.True(t, IsReply(wire.Word("!trap")))
	assert.False(t, IsReply(wire.Word("/login")))
}

func TestParseAttribute(t *testing.T) {
	key, value, ok := ParseAttribute(wire.Word("=name=admin"))
	assert.True(t, ok)
	assert.Equal(t, "name", key)
	assert.Equal(t, "admin", value)

	_, _, ok = ParseAttribute(wire.Word("?name=admin"))
	assert.False(t, ok)
}

func TestParseFilter(t *testing.T) {
	key, value, ok := ParseFilter(wire.Word("?chain=forward"))
	assert.True(t, ok)
	assert.Equal(t, "chain", key)
	assert.Equal(t, "forward", value)
}

func TestProplistFields(t *testing.T) {
	assert.Equal(t, []string{"name", "address"}, ProplistFields("name,address"))
	assert.Nil(t, ProplistFields(""))
}

func TestPath(t *testing.T) {
	path, command := Path(wire.Word("/ip/firewall/filter/add"))
	assert.Equal(t, "/ip/firewall/filter", path)
	assert.Equal(t, "add", command)

	path, command = Path(wire.Word("/login"))
	assert.Equal(t, "", path)
	assert.Equal(t, "login", command)
}
