//go:build darwin

package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzda/procwatch/internal/aggregate"
)

func TestParseLsofFieldOutput(t *testing.T) {
	raw := "p1234\ncfirefox\nPTCP\nn10.0.0.2:5000->1.2.3.4:80\n" +
		"p77\nccurl\nPTCP\nn*:9000\n"
	result := parseLsofFieldOutput([]byte(raw))

	key := aggregate.ConnectionKey{
		Proto:  aggregate.TCP,
		Local:  aggregate.Endpoint{IP: "10.0.0.2", Port: 5000},
		Remote: aggregate.Endpoint{IP: "1.2.3.4", Port: 80},
	}
	proc, ok := result[key]
	assert.True(t, ok)
	assert.Equal(t, "firefox", proc.Name)
	assert.Equal(t, uint32(1234), proc.PID)
}
