package numerator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Format(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		n      int64
		output string
	}{
		{name: "plain", cfg: CheckNumberConfig(), n: 1042, output: "1042"},
		{name: "padded", cfg: Config{Key: "k", PadWidth: 6}, n: 42, output: "000042"},
		{name: "wider than pad", cfg: Config{Key: "k", PadWidth: 2}, n: 1234, output: "1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.output, tt.cfg.Format(tt.n))
		})
	}
}

func TestCheckNumberConfig(t *testing.T) {
	assert.Equal(t, "check_number", CheckNumberConfig().Key)
}

func TestMockGenerator_Sequence(t *testing.T) {
	ctx := context.Background()
	m := &MockGenerator{}
	cfg := CheckNumberConfig()

	first, err := m.Reserve(ctx, cfg, 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), first)

	assert.NoError(t, m.Advance(ctx, cfg, 100))
	assert.NoError(t, m.Advance(ctx, cfg, 50))

	next, err := m.Reserve(ctx, cfg, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(101), next)
}
