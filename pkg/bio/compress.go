package bio

import (
	"bytes"
	"encoding/binary"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

/*
Compression names how an encoded bundle is compressed. Every encoded bundle
starts with a header of the magic string, the compression byte and the
uncompressed length, so readers need not be told which was used.
*/
type Compression uint8

const (
	// CompressionNone stores the encoding as is.
	CompressionNone Compression = iota
	// CompressionZSTD favours ratio.
	CompressionZSTD
	// CompressionLZ4 favours speed.
	CompressionLZ4
)

const (
	bundleMagic      = "ARBF"
	bundleHeaderSize = len(bundleMagic) + 1 + 8
	// MaxBundleSize bounds the uncompressed size a header may announce.
	MaxBundleSize = 1 << 32
	// lz4 blocks cannot expand beyond this ratio.
	lz4MaxRatio = 255
)

// ErrBadHeader is returned when data does not start with a bundle header.
var ErrBadHeader = errors.New("not an encoded bundle")

var compressionNames = map[string]Compression{
	"none": CompressionNone,
	"zstd": CompressionZSTD,
	"lz4":  CompressionLZ4,
}

// ParseCompression maps "none", "zstd" or "lz4" to a Compression.
func ParseCompression(name string) (Compression, error) {
	c, ok := compressionNames[name]
	if !ok {
		return 0, errors.Errorf("unknown compression %q", name)
	}
	return c, nil
}

func (c Compression) String() string {
	for name, v := range compressionNames {
		if v == c {
			return name
		}
	}
	return "unknown"
}

/*
compress prefixes data with the bundle header after compressing it. Data
that lz4 cannot shrink is stored uncompressed.
*/
func compress(data []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionNone:
		payload = data
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd encoder")
		}
		payload = enc.EncodeAll(data, nil)
		enc.Close()
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 compressing")
		}
		if n == 0 {
			c, payload = CompressionNone, data
		} else {
			payload = buf[:n]
		}
	default:
		return nil, errors.Errorf("unknown compression %d", c)
	}
	var out bytes.Buffer
	out.Grow(bundleHeaderSize + len(payload))
	out.WriteString(bundleMagic)
	out.WriteByte(byte(c))
	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(data)))
	out.Write(size[:])
	out.Write(payload)
	return out.Bytes(), nil
}

// decompress checks the bundle header and undoes compress.
func decompress(data []byte) ([]byte, error) {
	if len(data) < bundleHeaderSize || string(data[:len(bundleMagic)]) != bundleMagic {
		return nil, ErrBadHeader
	}
	c := Compression(data[len(bundleMagic)])
	size := binary.LittleEndian.Uint64(data[len(bundleMagic)+1:])
	payload := data[bundleHeaderSize:]
	if size > MaxBundleSize {
		return nil, errors.Wrapf(ErrBadHeader, "announced size %d exceeds %d", size, uint64(MaxBundleSize))
	}
	var out []byte
	switch c {
	case CompressionNone:
		out = payload
	case CompressionZSTD:
		limit := size
		if limit == 0 {
			limit = 1
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(limit), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, errors.Wrap(err, "creating zstd decoder")
		}
		defer dec.Close()
		out, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, errors.Wrap(err, "zstd decompressing")
		}
	case CompressionLZ4:
		if size > uint64(len(payload))*lz4MaxRatio+16 {
			return nil, errors.Wrapf(ErrBadHeader, "announced size %d too large for %d lz4 bytes", size, len(payload))
		}
		out = make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 decompressing")
		}
		out = out[:n]
	default:
		return nil, errors.Wrapf(ErrBadHeader, "unknown compression %d", c)
	}
	if uint64(len(out)) != size {
		return nil, errors.Errorf("decompressed %d bytes, header says %d", len(out), size)
	}
	return out, nil
}
