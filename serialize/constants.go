/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package serialize

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// weakHash sums the little-endian 64-bit words of data, plus its trailing
// bytes. It is fast and order-sensitive but collides easily (swapping two
// words keeps the sum), so callers must always confirm a hit by comparing
// bytes.
func weakHash(data []byte) uint64 {
	var sum uint64
	i := 0
	for ; i+8 <= len(data); i += 8 {
		sum += binary.LittleEndian.Uint64(data[i:])
	}
	for ; i < len(data); i++ {
		sum += uint64(data[i])
	}
	return sum
}

type constantEntry struct {
	offset int64
	data   []byte
}

// constantWriter appends constant payloads to the binary stream,
// deduplicating identical payloads to a single copy.
type constantWriter struct {
	w       io.Writer
	offset  int64
	entries map[uint64][]constantEntry
}

func newConstantWriter(w io.Writer) *constantWriter {
	return &constantWriter{w: w, entries: make(map[uint64][]constantEntry)}
}

// write stores the payload and returns its (offset, size) in the binary
// stream. A payload byte-identical to an earlier one reuses its offset.
func (cw *constantWriter) write(data []byte) (offset, size int64, err error) {
	size = int64(len(data))
	hash := weakHash(data)
	for _, entry := range cw.entries[hash] {
		if bytes.Equal(entry.data, data) {
			klog.V(2).Infof("constant dedup: reusing offset %d for %s payload",
				entry.offset, humanize.IBytes(uint64(size)))
			return entry.offset, size, nil
		}
	}
	offset = cw.offset
	if _, err = cw.w.Write(data); err != nil {
		return 0, 0, errors.Wrapf(err, "writing %s constant payload", humanize.IBytes(uint64(size)))
	}
	cw.offset += size
	cw.entries[hash] = append(cw.entries[hash], constantEntry{offset: offset, data: bytes.Clone(data)})
	return offset, size, nil
}

// written returns the total bytes emitted so far.
func (cw *constantWriter) written() int64 { return cw.offset }
