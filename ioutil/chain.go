package ioutil

import (
	"fmt"
	"io"
)

// ChainReader sequentially concatenates a list of SequentialReaders,
// checking after every read that the current child's Tellg() never exceeds
// its Size() (the seek-offset invariant of spec.md §4.1).
type ChainReader struct {
	parts []SequentialReader
	idx   int
	size  int64
}

// NewChainReader builds a ChainReader over parts, in order.
func NewChainReader(parts []SequentialReader) *ChainReader {
	var size int64
	for _, p := range parts {
		size += p.Size()
	}
	return &ChainReader{parts: parts, size: size}
}

func (c *ChainReader) Size() int64 { return c.size }

func (c *ChainReader) Tellg() int64 {
	var done int64
	for i := 0; i < c.idx; i++ {
		done += c.parts[i].Size()
	}
	if c.idx < len(c.parts) {
		done += c.parts[c.idx].Tellg()
	}
	return done
}

func (c *ChainReader) Skip(n int64) error {
	remaining := n
	for remaining > 0 {
		if c.idx >= len(c.parts) {
			return fmt.Errorf("ioutil: chain skip past end")
		}
		cur := c.parts[c.idx]
		avail := cur.Size() - cur.Tellg()
		if avail >= remaining {
			if err := cur.Skip(remaining); err != nil {
				return err
			}
			return c.checkInvariant()
		}
		if err := cur.Skip(avail); err != nil {
			return err
		}
		remaining -= avail
		c.idx++
	}
	return nil
}

func (c *ChainReader) ReadSome(p []byte) (int, error) {
	var total int
	for total < len(p) {
		if c.idx >= len(c.parts) {
			if total == 0 {
				return 0, io.EOF
			}
			return total, nil
		}
		cur := c.parts[c.idx]
		n, err := cur.ReadSome(p[total:])
		total += n
		if err == io.EOF {
			c.idx++
			continue
		}
		if err != nil {
			return total, err
		}
		if err := c.checkInvariant(); err != nil {
			return total, err
		}
		if n == 0 {
			// avoid spinning if a child reports neither progress nor EOF
			c.idx++
		}
	}
	return total, nil
}

func (c *ChainReader) checkInvariant() error {
	if c.idx >= len(c.parts) {
		return nil
	}
	cur := c.parts[c.idx]
	if cur.Tellg() > cur.Size() {
		return fmt.Errorf("ioutil: chain child %d tellg %d exceeds size %d", c.idx, cur.Tellg(), cur.Size())
	}
	return nil
}
