package link

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/observe-l/seclink/internal/chanserver"
)

// Remote exchanges codewords through a channel emulator service.
type Remote struct {
	conn   *grpc.ClientConn
	client *chanserver.Client

	mu     sync.Mutex
	closed bool
}

var _ Link = (*Remote)(nil)

// DialRemote connects to the emulator at addr. Without options the connection is plaintext.
func DialRemote(addr string, opts ...grpc.DialOption) (*Remote, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("link: dial %s: %w", addr, err)
	}
	return &Remote{conn: conn, client: chanserver.NewClient(conn)}, nil
}

func (r *Remote) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Remote) Send(ctx context.Context, codeword []byte) error {
	if r.isClosed() {
		return ErrClosed
	}
	return remoteErr(r.client.Transmit(ctx, codeword))
}

func (r *Remote) Receive(ctx context.Context) ([]byte, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}
	cw, err := r.client.Receive(ctx)
	if err != nil {
		return nil, remoteErr(err)
	}
	return cw, nil
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.conn.Close()
}

func remoteErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case codes.Canceled:
		return context.Canceled
	}
	return fmt.Errorf("link: remote: %w", err)
}
