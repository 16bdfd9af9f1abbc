package sink

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpromer/sensors/environment"
)

func TestLog_Consume(t *testing.T) {
	var buf bytes.Buffer
	s := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	ctx := context.Background()

	require.NoError(t, s.Consume(ctx, environment.NewBMP280(0, environment.BMP280AddrLow)))
	assert.Empty(t, buf.String())

	require.NoError(t, s.Consume(ctx, barometer("attic", false)))
	assert.Contains(t, buf.String(), "level=INFO msg=reading sensor=attic temperature=25.08 pressure=100653.27")
	buf.Reset()

	require.NoError(t, s.Consume(ctx, barometer("cellar", true)))
	assert.Contains(t, buf.String(), "level=WARN msg=\"no reading\" sensor=cellar")
}
