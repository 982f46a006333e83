package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/observe-l/seclink/aead"
	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/chanserver"
	"github.com/observe-l/seclink/internal/sim"
	"github.com/observe-l/seclink/link"
	"github.com/observe-l/seclink/pipeline"
)

var key = []byte("0123456789abcdef")

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func message(i, n int) []byte {
	b := []byte(fmt.Sprintf("frame %06d ", i))
	for len(b) < n {
		b = append(b, byte('a'+len(b)%26))
	}
	return b[:n]
}

func TestEveryCodeAndSuiteWithinRadius(t *testing.T) {
	for _, p := range fec.Codes() {
		if p.DataLen() < aead.Overhead {
			continue
		}
		for _, suite := range aead.Suites() {
			t.Run(p.Name+"/"+string(suite), func(t *testing.T) {
				pl, err := pipeline.New(key, pipeline.Config{Code: p, Suite: suite, Logger: quiet()})
				require.NoError(t, err)
				ch := sim.NewFixedWeight(p.CorrectionRadius(), int64(p.N))
				for i := 0; i < 50; i++ {
					rep, err := pl.Run(message(i, pl.MaxPlaintext()), ch)
					require.NoError(t, err, "run %d", i)
					require.Equal(t, p.CorrectionRadius(), rep.Iterations)
				}
			})
		}
	}
}

func TestBSCSweep(t *testing.T) {
	const runs = 200
	t.Logf("| BER | mean flips | success (%%) | avg attempts |")
	t.Logf("|---:|---:|---:|---:|")
	for _, ber := range []float64{0, 0.0002, 0.0005, 0.001} {
		pl, err := pipeline.New(key, pipeline.Config{Retries: 2, Logger: quiet()})
		require.NoError(t, err)
		ch := sim.NewBSC(ber, 11)
		ok, attempts := 0, 0
		for i := 0; i < runs; i++ {
			rep, err := pl.Run(message(i, 100), ch)
			attempts += rep.Attempts
			if err == nil {
				ok++
				continue
			}
			require.False(t, errors.Is(err, pipeline.ErrMismatch), "wrong plaintext accepted at ber %g", ber)
		}
		t.Logf("| %g | %.2f | %.1f | %.2f |", ber, ber*2048, 100*float64(ok)/runs, float64(attempts)/runs)
		if ber <= 0.0005 {
			assert.Equal(t, runs, ok, "ber %g", ber)
		}
	}
}

func TestBeyondRadiusNeverYieldsWrongPlaintext(t *testing.T) {
	pl, err := pipeline.New(key, pipeline.Config{Logger: quiet()})
	require.NoError(t, err)
	ch := sim.NewFixedWeight(40, 5)
	for i := 0; i < 100; i++ {
		_, err := pl.Run(message(i, 100), ch)
		if err == nil {
			continue
		}
		assert.True(t, errors.Is(err, fec.ErrNonConvergence) || errors.Is(err, aead.ErrAuthenticationFailure), "run %d: %v", i, err)
	}
}

func TestLoopbackLinkSession(t *testing.T) {
	l := link.NewLoopback(8, sim.NewFixedWeight(3, 9))
	defer l.Close()
	tx, err := pipeline.New(key, pipeline.Config{Logger: quiet()})
	require.NoError(t, err)
	rx, err := pipeline.New(key, pipeline.Config{Logger: quiet()})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := 0; i < 8; i++ {
		_, err := tx.Send(ctx, l, message(i, 100))
		require.NoError(t, err)
	}
	for i := 0; i < 8; i++ {
		o, err := rx.Receive(ctx, l, 100)
		require.NoError(t, err)
		assert.Equal(t, message(i, 100), o.Plaintext)
		assert.Equal(t, 3, o.Decode.Iterations)
	}
}

func TestRemoteEmulatorSession(t *testing.T) {
	srv, err := chanserver.New(0, 1, 32, quiet())
	require.NoError(t, err)
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	chanserver.Register(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	defer gs.Stop()

	dial := func() *link.Remote {
		r, err := link.DialRemote("bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		return r
	}
	sendLink, recvLink := dial(), dial()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, chanserver.NewClient(mustConn(t, lis)).Configure(ctx, 0.0005))

	tx, err := pipeline.New(key, pipeline.Config{Suite: aead.ChaCha20Poly1305, Logger: quiet()})
	require.NoError(t, err)
	rx, err := pipeline.New(key, pipeline.Config{Suite: aead.ChaCha20Poly1305, Logger: quiet()})
	require.NoError(t, err)

	const n = 30
	for i := 0; i < n; i++ {
		_, err := tx.Send(ctx, sendLink, message(i, 100))
		require.NoError(t, err)
	}
	delivered := 0
	for i := 0; i < n; i++ {
		o, err := rx.Receive(ctx, recvLink, 100)
		if err != nil {
			assert.True(t, errors.Is(err, fec.ErrNonConvergence) || errors.Is(err, aead.ErrAuthenticationFailure), "codeword %d: %v", i, err)
			continue
		}
		assert.Equal(t, message(i, 100), o.Plaintext)
		delivered++
	}
	frames, flipped := srv.Stats()
	t.Logf("delivered %d/%d, channel flipped %d bits over %d frames", delivered, n, flipped, frames)
	assert.Equal(t, n, frames)
	assert.Greater(t, delivered, n/2)
}

func mustConn(t *testing.T, lis *bufconn.Listener) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.Dial("bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
