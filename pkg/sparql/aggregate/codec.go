package aggregate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/sparqlexec/internal/encoding"
	"github.com/aleksaelezovic/sparqlexec/pkg/sparql/expr"
)

// MarshalBinary encodes the collector state. A sticky error is kept as a
// type error.
func (c *Collector) MarshalBinary() ([]byte, error) {
	buf := []byte{byte(c.kind)}
	if c.err != nil {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.AppendVarint(buf, c.count)
	buf = binary.AppendUvarint(buf, uint64(len(c.separator)))
	buf = append(buf, c.separator...)
	concat := c.concat.String()
	buf = binary.AppendUvarint(buf, uint64(len(concat)))
	buf = append(buf, concat...)
	return encoding.NewTermEncoder().AppendTerm(buf, c.value)
}

var errCorrupt = errors.New("corrupt collector state")

// UnmarshalBinary restores a collector written by MarshalBinary.
func (c *Collector) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return errCorrupt
	}
	c.kind = Kind(data[0])
	failed := data[1] == 1
	data = data[2:]

	count, n := binary.Varint(data)
	if n <= 0 {
		return errCorrupt
	}
	c.count = count
	data = data[n:]

	sep, rest, err := readBytes(data)
	if err != nil {
		return err
	}
	c.separator = string(sep)

	concat, rest, err := readBytes(rest)
	if err != nil {
		return err
	}
	c.concat.Reset()
	c.concat.Write(concat)

	value, _, err := encoding.NewTermDecoder().DecodeTerm(rest)
	if err != nil {
		return fmt.Errorf("failed to decode collector value: %w", err)
	}
	c.value = value

	c.err = nil
	if failed {
		c.err = fmt.Errorf("%w: %s", expr.ErrTypeError, c.kind)
	}
	return nil
}

func readBytes(data []byte) ([]byte, []byte, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 || size > uint64(len(data)-n) {
		return nil, nil, errCorrupt
	}
	end := n + int(size) // #nosec G115 - bounded by the check above
	return data[n:end], data[end:], nil
}
