package info

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	s := Get()
	assert.Equal(t, "0.0.0-1", s.Version)
	assert.Equal(t, InstanceID, s.InstanceID)
	assert.True(t, strings.Contains(s.String(), InstanceID))
}

func TestConsumerName(t *testing.T) {
	name := ConsumerName("matcher")
	assert.True(t, strings.HasPrefix(name, "matcher-"))
	assert.Len(t, name, len("matcher-")+8)
}
