// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"fmt"
	"io"
	"slices"
)

// DefaultCatchLimit bounds the bytes a BufferCatcher keeps per file.
const DefaultCatchLimit = 4 << 20

// BufferCatcher collects the content of the named files in memory. Names are
// in priority order: the unpack stops as soon as the first name is caught.
type BufferCatcher struct {
	Names []string
	// Limit caps each caught file; zero uses DefaultCatchLimit.
	Limit int64

	found map[string][]byte
}

// NewBufferCatcher returns a catcher for names.
func NewBufferCatcher(names ...string) *BufferCatcher {
	return &BufferCatcher{Names: names}
}

// Accept implements FileCatcher.
func (c *BufferCatcher) Accept(name string) bool {
	return slices.Contains(c.Names, name)
}

// Catch implements FileCatcher.
func (c *BufferCatcher) Catch(name string, r io.Reader) (bool, error) {
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultCatchLimit
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return false, err
	}
	if int64(len(data)) > limit {
		return false, fmt.Errorf("%s exceeds %d bytes", name, limit)
	}
	if c.found == nil {
		c.found = map[string][]byte{}
	}
	c.found[name] = data
	return len(c.Names) > 0 && name == c.Names[0], nil
}

// Best returns the highest-priority caught file.
func (c *BufferCatcher) Best() (name string, data []byte, ok bool) {
	for _, n := range c.Names {
		if d, found := c.found[n]; found {
			return n, d, true
		}
	}
	return "", nil, false
}
