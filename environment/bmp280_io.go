package environment

import (
	"context"
	"time"

	"github.com/maxpromer/sensors"
)

// registerIO adapts the transport bound at detection to the register
// callbacks of the bmp280 package.
type registerIO struct {
	transport sensors.Transport
	channel   int
}

func (r *registerIO) read(ctx context.Context, addr, reg byte, data []byte) error {
	return r.transport.Read(ctx, r.channel, addr, []byte{reg}, data)
}

func (r *registerIO) write(ctx context.Context, addr, reg byte, data []byte) error {
	buf := make([]byte, len(data)+1)
	buf[0] = reg
	copy(buf[1:], data)
	return r.transport.Write(ctx, r.channel, addr, buf)
}

func (r *registerIO) delay(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
