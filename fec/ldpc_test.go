package fec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genCode(t *rapid.T) *Code {
	p := rapid.SampledFrom(Codes()).Draw(t, "code")
	return MustNew(p)
}

func TestBuiltinParamsValid(t *testing.T) {
	for _, p := range Codes() {
		require.NoError(t, p.Validate(), p.Name)
		assert.Equal(t, p.M()/p.Circulant, p.ColumnWeight, p.Name)
	}
	assert.Equal(t, []string{"qc256", "qc512", "qc1536", "qc2048", "qc4096"}, Names())
}

func TestQC2048Sizes(t *testing.T) {
	p, err := Lookup("qc2048")
	require.NoError(t, err)
	assert.Equal(t, 1024, p.K)
	assert.Equal(t, 2048, p.N)
	assert.Equal(t, 0.5, p.Rate())
	assert.Equal(t, 256, p.OutputLen())
	assert.Equal(t, 128, p.DataLen())
	assert.Equal(t, 2048+128, p.WorkspaceLen())
	assert.Equal(t, 4, p.CorrectionRadius())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("tm2048")
	assert.Error(t, err)
}

func TestParamsValidateRejects(t *testing.T) {
	bad := []Params{
		{Name: "k>=n", K: 256, N: 256, ColumnWeight: 4, Circulant: 64},
		{Name: "odd bits", K: 12, N: 36, ColumnWeight: 2, Circulant: 12},
		{Name: "weight", K: 128, N: 256, ColumnWeight: 1, Circulant: 128},
		{Name: "m mismatch", K: 128, N: 256, ColumnWeight: 4, Circulant: 16},
		// 7*7 >= 32: information bits would share two checks
		{Name: "girth", K: 256, N: 512, ColumnWeight: 8, Circulant: 32},
	}
	for _, p := range bad {
		assert.Error(t, p.Validate(), p.Name)
		_, err := New(p)
		assert.Error(t, err, p.Name)
	}
}

func TestInformationBitsShareAtMostOneCheck(t *testing.T) {
	for _, p := range Codes() {
		c := MustNew(p)
		seen := make(map[[2]int32]struct{})
		for r := 0; r < p.M(); r++ {
			members := c.checkMembers(r)
			data := members[:len(members)-1]
			for i := 0; i < len(data); i++ {
				for j := i + 1; j < len(data); j++ {
					key := [2]int32{data[i], data[j]}
					_, dup := seen[key]
					require.Falsef(t, dup, "%s: bits %d,%d share more than one check", p.Name, data[i], data[j])
					seen[key] = struct{}{}
				}
			}
			assert.Equal(t, int32(p.K+r), members[len(members)-1])
		}
		for v := 0; v < p.K; v++ {
			assert.Equal(t, p.ColumnWeight, c.degree(v))
		}
		for v := p.K; v < p.N; v++ {
			assert.Equal(t, 1, c.degree(v))
		}
	}
}

func TestEncodeIsSystematic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := genCode(t)
		p := c.Params()
		data := rapid.SliceOfN(rapid.Byte(), p.DataLen(), p.DataLen()).Draw(t, "data")

		cw, err := c.Encode(data)
		require.NoError(t, err)
		require.Len(t, cw, p.OutputLen())
		assert.Equal(t, data, cw[:p.DataLen()])
		assert.True(t, c.Check(cw))
		s, err := c.Syndrome(cw)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, p.M()/8), s)
	})
}

func TestEncodePadsShortData(t *testing.T) {
	c := MustNew(QC2048)
	short := bytes.Repeat([]byte("7"), 100)
	padded := append(append([]byte(nil), short...), make([]byte, 28)...)

	a, err := c.Encode(short)
	require.NoError(t, err)
	b, err := c.Encode(padded)
	require.NoError(t, err)
	assert.Equal(t, b, a)
}

func TestEncodeRejectsLongData(t *testing.T) {
	c := MustNew(QC256)
	_, err := c.Encode(make([]byte, 17))
	assert.True(t, errors.Is(err, ErrFormat))
	assert.True(t, errors.Is(c.EncodeInto(make([]byte, 31), nil), ErrFormat))
}

func TestDecodeCleanCodeword(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := genCode(t)
		p := c.Params()
		data := rapid.SliceOfN(rapid.Byte(), p.DataLen(), p.DataLen()).Draw(t, "data")
		iters := rapid.IntRange(0, 30).Draw(t, "maxIterations")

		cw, err := c.Encode(data)
		require.NoError(t, err)
		res, err := NewDecoder(c, iters).Decode(cw)
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Zero(t, res.Iterations)
		assert.NoError(t, res.Err())
		assert.Equal(t, data, res.Data)
	})
}

func TestDecodeCorrectsWithinRadius(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := genCode(t)
		p := c.Params()
		data := rapid.SliceOfN(rapid.Byte(), p.DataLen(), p.DataLen()).Draw(t, "data")
		weight := rapid.IntRange(1, p.CorrectionRadius()).Draw(t, "weight")
		positions := rapid.SliceOfNDistinct(rapid.IntRange(0, p.N-1), weight, weight, rapid.ID[int]).Draw(t, "positions")

		cw, err := c.Encode(data)
		require.NoError(t, err)
		rx := append([]byte(nil), cw...)
		for _, pos := range positions {
			flipBit(rx, pos)
		}
		require.Equal(t, weight, HammingDistance(cw, rx))

		res, err := NewDecoder(c, 20).Decode(rx)
		require.NoError(t, err)
		assert.Equal(t, Converged, res.Status)
		assert.Equal(t, weight, res.Iterations)
		assert.Equal(t, data, res.Data)
	})
}

func TestDecodeExhaustedIsTagged(t *testing.T) {
	c := MustNew(QC2048)
	cw, err := c.Encode([]byte("telemetry"))
	require.NoError(t, err)
	cw[3] ^= 0x10

	res, err := NewDecoder(c, 0).Decode(cw)
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res.Status)
	assert.Zero(t, res.Iterations)
	assert.Equal(t, QC2048.ColumnWeight, res.Unsatisfied)
	assert.True(t, errors.Is(res.Err(), ErrNonConvergence))

	res, err = NewDecoder(c, 1).Decode(cw)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.Equal(t, 1, res.Iterations)
}

func TestDecoderReuseDoesNotLeak(t *testing.T) {
	c := MustNew(QC512)
	d := NewDecoder(c, 20)
	first, err := c.Encode(bytes.Repeat([]byte{0xa5}, 32))
	require.NoError(t, err)
	second, err := c.Encode(bytes.Repeat([]byte{0x3c}, 32))
	require.NoError(t, err)

	noisy := append([]byte(nil), first...)
	noisy[0] ^= 0x81
	res, err := d.Decode(noisy)
	require.NoError(t, err)
	require.Equal(t, Converged, res.Status)
	assert.Equal(t, first[:32], res.Data)

	res, err = d.Decode(second)
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.Zero(t, res.Iterations)
	assert.Equal(t, second[:32], res.Data)
}

func TestDecodeRejectsBadBuffers(t *testing.T) {
	c := MustNew(QC256)
	p := c.Params()
	cw := make([]byte, p.OutputLen())
	_, err := c.Decode(cw[:10], make([]byte, p.OutputLen()), make([]byte, p.WorkspaceLen()), 5)
	assert.True(t, errors.Is(err, ErrFormat))
	_, err = c.Decode(cw, make([]byte, 3), make([]byte, p.WorkspaceLen()), 5)
	assert.True(t, errors.Is(err, ErrFormat))
	_, err = c.Decode(cw, make([]byte, p.OutputLen()), make([]byte, p.WorkspaceLen()-1), 5)
	assert.True(t, errors.Is(err, ErrFormat))
	_, err = c.Syndrome(cw[:1])
	assert.True(t, errors.Is(err, ErrFormat))
	assert.False(t, c.Check(cw[:1]))
}

func TestBitString(t *testing.T) {
	assert.Equal(t, "10000001 00000000 11111111", BitString([]byte{0x81, 0x00, 0xff}))
	assert.Equal(t, "", BitString(nil))
}

func TestHammingDistance(t *testing.T) {
	assert.Equal(t, 0, HammingDistance([]byte{1, 2}, []byte{1, 2}))
	assert.Equal(t, 9, HammingDistance([]byte{0xff, 0x01}, []byte{0x00, 0x00, 0x01}))
}

func BenchmarkDecodeQC2048(b *testing.B) {
	c := MustNew(QC2048)
	cw, err := c.Encode(bytes.Repeat([]byte{0x5a}, 128))
	if err != nil {
		b.Fatal(err)
	}
	cw[7] ^= 0x01
	cw[200] ^= 0x40
	d := NewDecoder(c, 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.Decode(cw); err != nil {
			b.Fatal(err)
		}
	}
}
