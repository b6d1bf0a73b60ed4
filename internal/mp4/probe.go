package mp4

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DefaultProbeSize is how much of a file ProbeFile reads by default
const DefaultProbeSize = 1 << 20

const (
	boxHeaderSize = 8
	tkhdMinSize   = 84
	tkhdWidthAt   = 76
	tkhdHeightAt  = 80
)

// Resolution is the pixel size of a video track
type Resolution struct {
	Width  int
	Height int
}

type box struct {
	kind    string
	payload []byte
}

// walk iterates the boxes laid out back to back in data. It stops at the
// first box whose declared size is below the header size or runs past the
// end of data, or when visit returns false.
func walk(data []byte, visit func(b box) bool) {
	offset := 0
	for offset+boxHeaderSize <= len(data) {
		size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		if size < boxHeaderSize || offset+size > len(data) {
			return
		}

		b := box{
			kind:    string(data[offset+4 : offset+8]),
			payload: data[offset+boxHeaderSize : offset+size],
		}
		if !visit(b) {
			return
		}
		offset += size
	}
}

// Probe returns the dimensions stored in the first moov/trak/tkhd box of data.
// Truncated or malformed input yields false.
func Probe(data []byte) (Resolution, bool) {
	var (
		res   Resolution
		found bool
	)

	walk(data, func(moov box) bool {
		if moov.kind != "moov" {
			return true
		}
		walk(moov.payload, func(trak box) bool {
			if trak.kind != "trak" {
				return true
			}
			walk(trak.payload, func(tkhd box) bool {
				if tkhd.kind != "tkhd" || len(tkhd.payload) < tkhdMinSize {
					return true
				}
				res = Resolution{
					Width:  int(binary.BigEndian.Uint32(tkhd.payload[tkhdWidthAt:]) >> 16),
					Height: int(binary.BigEndian.Uint32(tkhd.payload[tkhdHeightAt:]) >> 16),
				}
				found = true
				return false
			})
			return !found
		})
		return !found
	})

	return res, found
}

// ProbeFile reads up to max bytes from the start of path and probes them
func ProbeFile(path string, max int64) (Resolution, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Resolution{}, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max))
	if err != nil {
		return Resolution{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	res, ok := Probe(data)
	return res, ok, nil
}
