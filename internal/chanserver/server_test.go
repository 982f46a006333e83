package chanserver

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/observe-l/seclink/fec"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func serve(t *testing.T, s *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	Register(gs, s)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestNewRejectsBadRate(t *testing.T) {
	_, err := New(1.5, 1, 4, nil)
	assert.ErrorIs(t, err, ErrBadRate)
}

func TestTransmitReceiveNoiseless(t *testing.T) {
	s, err := New(0, 1, 4, quietLogger())
	require.NoError(t, err)
	c := serve(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cw := []byte{0xde, 0xad, 0xbe, 0xef}
	require.NoError(t, c.Transmit(ctx, cw))
	got, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, cw, got)

	frames, flipped := s.Stats()
	assert.Equal(t, 1, frames)
	assert.Zero(t, flipped)
}

func TestConfigureChangesRate(t *testing.T) {
	s, err := New(0, 1, 4, quietLogger())
	require.NoError(t, err)
	c := serve(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Configure(ctx, 1))
	assert.Equal(t, 1.0, s.BER())

	cw := []byte{0x0f, 0xf0}
	require.NoError(t, c.Transmit(ctx, cw))
	got, err := c.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf0, 0x0f}, got)
	assert.Equal(t, 16, fec.HammingDistance(cw, got))

	err = c.Configure(ctx, -0.1)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestEmptyCodewordRejected(t *testing.T) {
	s, err := New(0, 1, 4, quietLogger())
	require.NoError(t, err)
	c := serve(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = c.Transmit(ctx, nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestReceiveTimesOut(t *testing.T) {
	s, err := New(0, 1, 4, quietLogger())
	require.NoError(t, err)
	c := serve(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Receive(ctx)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestTransmitBlocksWhenQueueFull(t *testing.T) {
	s, err := New(0, 1, 1, quietLogger())
	require.NoError(t, err)

	require.NoError(t, s.Transmit(context.Background(), []byte{1}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Transmit(ctx, []byte{2}), context.DeadlineExceeded)

	got, err := s.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)
}
