package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/observe-l/seclink/fec"
	"github.com/observe-l/seclink/internal/mocks"
	"github.com/observe-l/seclink/link"
)

func TestSendHandsCodewordToLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLink(ctrl)
	p := newPipeline(t, Config{})

	var sent []byte
	l.EXPECT().Send(gomock.Any(), gomock.Len(256)).DoAndReturn(func(_ context.Context, cw []byte) error {
		sent = cw
		return nil
	})
	s, err := p.Send(context.Background(), l, digits())
	require.NoError(t, err)
	assert.Equal(t, s.Codeword, sent)
}

func TestSendPropagatesLinkError(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLink(ctrl)
	p := newPipeline(t, Config{})

	l.EXPECT().Send(gomock.Any(), gomock.Any()).Return(link.ErrClosed)
	_, err := p.Send(context.Background(), l, []byte("x"))
	assert.ErrorIs(t, err, link.ErrClosed)
}

func TestReceiveOpensCodeword(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLink(ctrl)
	tx := newPipeline(t, Config{})
	rx := newPipeline(t, Config{})

	s, err := tx.Seal(digits())
	require.NoError(t, err)
	noisy := append([]byte(nil), s.Codeword...)
	noisy[10] ^= 0x24
	noisy[200] ^= 0x01

	l.EXPECT().Receive(gomock.Any()).Return(noisy, nil)
	o, err := rx.Receive(context.Background(), l, 100)
	require.NoError(t, err)
	assert.Equal(t, digits(), o.Plaintext)
	assert.Equal(t, 3, o.Decode.Iterations)
	assert.Equal(t, fec.Converged, o.Decode.Status)
}

func TestReceiveTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	l := mocks.NewMockLink(ctrl)
	p := newPipeline(t, Config{})

	l.EXPECT().Receive(gomock.Any()).Return(nil, link.ErrTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := p.Receive(ctx, l, 100)
	assert.ErrorIs(t, err, link.ErrTimeout)
}

func TestLoopbackLinkEndToEnd(t *testing.T) {
	l := link.NewLoopback(1, nil)
	defer l.Close()
	tx := newPipeline(t, Config{})
	rx := newPipeline(t, Config{})

	ctx := context.Background()
	_, err := tx.Send(ctx, l, []byte("over the loop"))
	require.NoError(t, err)
	o, err := rx.Receive(ctx, l, len("over the loop"))
	require.NoError(t, err)
	assert.Equal(t, "over the loop", string(o.Plaintext))
}
