package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSSRFGuard_RejectsLiteralIPByDefault(t *testing.T) {
	g := NewSSRFGuard(false)
	err := g.Check(context.Background(), "93.184.216.34")
	assert.Error(t, err)
}

func TestSSRFGuard_RejectsPrivateRanges(t *testing.T) {
	g := NewSSRFGuard(true)
	for _, host := range []string{"127.0.0.1", "10.0.0.5", "172.16.4.4", "192.168.1.1", "169.254.1.1", "::1"} {
		t.Run(host, func(t *testing.T) {
			assert.Error(t, g.Check(context.Background(), host))
		})
	}
}

func TestSSRFGuard_AllowsPublicLiteralIPWhenEnabled(t *testing.T) {
	g := NewSSRFGuard(true)
	assert.NoError(t, g.Check(context.Background(), "93.184.216.34"))
}
