package vo

import (
	"errors"

	"github.com/dustin/go-humanize"
)

// ByteSize is a non-negative byte count used for cache budgets.
type ByteSize struct {
	bytes int64
}

const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
)

var ErrNegativeSize = errors.New("byte size cannot be negative")

// NewByteSize creates a ByteSize.
func NewByteSize(bytes int64) (ByteSize, error) {
	if bytes < 0 {
		return ByteSize{}, ErrNegativeSize
	}
	return ByteSize{bytes: bytes}, nil
}

// ParseByteSize parses strings like "20MiB", "512 KB" or "1048576".
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return ByteSize{}, err
	}
	if n > uint64(1<<63-1) {
		return ByteSize{}, errors.New("byte size overflows int64")
	}
	return ByteSize{bytes: int64(n)}, nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return b.bytes
}

// IsZero returns true if the size is zero.
func (b ByteSize) IsZero() bool {
	return b.bytes == 0
}

// String returns an IEC formatted size, e.g. "20 MiB".
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b.bytes))
}

// HumanBytes formats a raw byte count for logs. Negative values (unknown
// measurements) are printed as "unknown".
func HumanBytes(n int64) string {
	if n < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(n))
}
