// Package codec implements the binary frame payload format of the
// analysis.tdf_bin container: an 8-byte prefix (total payload length and
// scan count, both little-endian uint32) followed by a zstd-compressed
// uint32 stream holding per-scan peak counts, per-scan delta-coded TOF
// indices, and intensities.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// PrefixBytes is the size of the uncompressed payload prefix.
const PrefixBytes = 8

var (
	ErrLengthMismatch   = errors.New("codec: array lengths differ")
	ErrScanOutOfRange   = errors.New("codec: scan index out of range")
	ErrPayloadTooSmall  = errors.New("codec: payload smaller than prefix")
	ErrPayloadCorrupt   = errors.New("codec: payload length field mismatch")
	ErrStreamTruncated  = errors.New("codec: decompressed stream truncated")
	ErrTooManyScans     = errors.New("codec: total scan count out of range")
	ErrIntensityTooWide = errors.New("codec: intensity exceeds uint32 range")
)

// Package-level zstd coder pair, concurrent-safe for EncodeAll/DecodeAll.
var (
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
)

func init() {
	var err error
	zstdEnc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic("codec: init encoder: " + err.Error())
	}
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("codec: init decoder: " + err.Error())
	}
}

// Encode serializes one frame's (scan, tof, intensity) triples into a
// compressed payload. totalScans is the scan axis resolution and is stored
// in the prefix so Decode can rebuild the per-scan layout. Triples are
// canonicalized to (scan, tof) order before encoding; Decode returns them
// in that order.
func Encode(scan, tof []int32, intensity []uint32, totalScans int) ([]byte, error) {
	n := len(scan)
	if len(tof) != n || len(intensity) != n {
		return nil, fmt.Errorf("%w: scan=%d tof=%d intensity=%d",
			ErrLengthMismatch, len(scan), len(tof), len(intensity))
	}
	if totalScans < 1 || totalScans > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrTooManyScans, totalScans)
	}
	for i := 0; i < n; i++ {
		if scan[i] < 0 || int(scan[i]) >= totalScans {
			return nil, fmt.Errorf("%w: scan %d at peak %d (total scans %d)",
				ErrScanOutOfRange, scan[i], i, totalScans)
		}
	}

	scan, tof, intensity = canonicalize(scan, tof, intensity)

	// counts per scan, then delta-coded tofs, then intensities.
	raw := make([]byte, 0, 4*(totalScans+2*n))
	var u32 [4]byte
	put := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		raw = append(raw, u32[:]...)
	}

	counts := make([]uint32, totalScans)
	for _, s := range scan {
		counts[s]++
	}
	for _, c := range counts {
		put(c)
	}
	prevScan := int32(-1)
	var prevTof int32
	for i := 0; i < n; i++ {
		if scan[i] != prevScan {
			// first peak of a scan carries the absolute tof index
			put(uint32(tof[i]))
			prevScan = scan[i]
		} else {
			put(uint32(tof[i] - prevTof))
		}
		prevTof = tof[i]
	}
	for _, v := range intensity {
		put(v)
	}

	compressed := zstdEnc.EncodeAll(raw, nil)

	blob := make([]byte, PrefixBytes+len(compressed))
	binary.LittleEndian.PutUint32(blob[0:4], uint32(len(blob)))
	binary.LittleEndian.PutUint32(blob[4:8], uint32(totalScans))
	copy(blob[PrefixBytes:], compressed)
	return blob, nil
}

// Decode is the inverse of Encode. It returns the (scan, tof, intensity)
// triples in canonical (scan, tof) order plus the stored scan count.
func Decode(blob []byte) (scan, tof []int32, intensity []uint32, totalScans int, err error) {
	if len(blob) < PrefixBytes {
		return nil, nil, nil, 0, ErrPayloadTooSmall
	}
	if binary.LittleEndian.Uint32(blob[0:4]) != uint32(len(blob)) {
		return nil, nil, nil, 0, ErrPayloadCorrupt
	}
	totalScans = int(binary.LittleEndian.Uint32(blob[4:8]))

	raw, err := zstdDec.DecodeAll(blob[PrefixBytes:], nil)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("codec: decompress payload: %w", err)
	}
	if len(raw)%4 != 0 || len(raw) < 4*totalScans {
		return nil, nil, nil, 0, ErrStreamTruncated
	}

	pos := 0
	next := func() uint32 {
		v := binary.LittleEndian.Uint32(raw[pos : pos+4])
		pos += 4
		return v
	}

	counts := make([]uint32, totalScans)
	var n int
	for s := range counts {
		counts[s] = next()
		n += int(counts[s])
	}
	if len(raw) != 4*(totalScans+2*n) {
		return nil, nil, nil, 0, ErrStreamTruncated
	}

	scan = make([]int32, 0, n)
	tof = make([]int32, 0, n)
	for s, c := range counts {
		var prev int32
		for i := uint32(0); i < c; i++ {
			v := int32(next())
			if i == 0 {
				prev = v
			} else {
				prev += v
			}
			scan = append(scan, int32(s))
			tof = append(tof, prev)
		}
	}
	intensity = make([]uint32, n)
	for i := range intensity {
		intensity[i] = next()
	}
	return scan, tof, intensity, totalScans, nil
}

// PayloadLength reads the total payload length from a prefix. Used by the
// dataset reader to size the read at a frame's recorded offset.
func PayloadLength(prefix []byte) (int, error) {
	if len(prefix) < 4 {
		return 0, ErrPayloadTooSmall
	}
	return int(binary.LittleEndian.Uint32(prefix[0:4])), nil
}

// canonicalize returns the triples sorted by (scan, tof) without modifying
// the inputs. Already-sorted input is returned as-is.
func canonicalize(scan, tof []int32, intensity []uint32) ([]int32, []int32, []uint32) {
	sorted := true
	for i := 1; i < len(scan); i++ {
		if scan[i] < scan[i-1] || (scan[i] == scan[i-1] && tof[i] < tof[i-1]) {
			sorted = false
			break
		}
	}
	if sorted {
		return scan, tof, intensity
	}

	idx := make([]int, len(scan))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if scan[i] != scan[j] {
			return scan[i] < scan[j]
		}
		return tof[i] < tof[j]
	})

	s := make([]int32, len(idx))
	t := make([]int32, len(idx))
	v := make([]uint32, len(idx))
	for pos, i := range idx {
		s[pos] = scan[i]
		t[pos] = tof[i]
		v[pos] = intensity[i]
	}
	return s, t, v
}
