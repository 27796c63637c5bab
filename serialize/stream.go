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
	"encoding/binary"
	"io"

	"github.com/gomlx/irgraph/ir"
	"github.com/pkg/errors"
)

// StreamHeader locates the sections of a single-stream container. All values
// are byte offsets and sizes from the start of the stream, encoded
// little-endian in this field order as the first 48 bytes.
type StreamHeader struct {
	CustomDataOffset uint64
	CustomDataSize   uint64
	ConstsOffset     uint64
	ConstsSize       uint64
	ModelOffset      uint64
	ModelSize        uint64
}

const streamHeaderSize = 6 * 8

func (h *StreamHeader) write(w io.Writer) error {
	fields := [6]uint64{
		h.CustomDataOffset, h.CustomDataSize,
		h.ConstsOffset, h.ConstsSize,
		h.ModelOffset, h.ModelSize,
	}
	var buf [streamHeaderSize]byte
	for i, v := range fields {
		binary.LittleEndian.PutUint64(buf[i*8:], v)
	}
	_, err := w.Write(buf[:])
	return errors.Wrap(err, "writing stream header")
}

// ReadStreamHeader parses the fixed header from the start of a stream.
func ReadStreamHeader(r io.Reader) (StreamHeader, error) {
	var buf [streamHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return StreamHeader{}, errors.Wrap(err, "reading stream header")
	}
	return StreamHeader{
		CustomDataOffset: binary.LittleEndian.Uint64(buf[0:]),
		CustomDataSize:   binary.LittleEndian.Uint64(buf[8:]),
		ConstsOffset:     binary.LittleEndian.Uint64(buf[16:]),
		ConstsSize:       binary.LittleEndian.Uint64(buf[24:]),
		ModelOffset:      binary.LittleEndian.Uint64(buf[32:]),
		ModelSize:        binary.LittleEndian.Uint64(buf[40:]),
	}, nil
}

// countingWriter tracks how many bytes passed through.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// StreamSerialize writes the whole container into one seekable stream:
// header, optional custom data, constant payloads, then the topology
// document. A placeholder header goes out first and is rewritten in place
// once the section sizes are known.
func StreamSerialize(f *ir.Function, ws io.WriteSeeker, opts Options, customData func(w io.Writer) error) error {
	// A bad version request must fail before any byte reaches the sink.
	if _, err := resolveVersion(f, opts.Version); err != nil {
		return err
	}

	var header StreamHeader
	if err := header.write(ws); err != nil {
		return err
	}

	position := int64(streamHeaderSize)
	header.CustomDataOffset = uint64(position)
	if customData != nil {
		counter := &countingWriter{w: ws}
		if err := customData(counter); err != nil {
			return errors.Wrap(err, "writing custom data section")
		}
		position += counter.n
	}
	header.CustomDataSize = uint64(position) - header.CustomDataOffset

	header.ConstsOffset = uint64(position)
	binCounter := &countingWriter{w: ws}
	xmlCounter := &countingWriter{w: ws}

	// The two sections are contiguous, constants first, so the XML must be
	// buffered until the constants are complete. Serialize interleaves writes
	// to both sinks; buffering the smaller document keeps the payloads
	// streaming.
	xmlBuffer := &deferredWriter{}
	if err := Serialize(f, xmlBuffer, binCounter, opts); err != nil {
		return err
	}
	position += binCounter.n
	header.ConstsSize = uint64(position) - header.ConstsOffset

	header.ModelOffset = uint64(position)
	if err := xmlBuffer.flush(xmlCounter); err != nil {
		return err
	}
	position += xmlCounter.n
	header.ModelSize = uint64(position) - header.ModelOffset

	if _, err := ws.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "seeking back to the stream header")
	}
	if err := header.write(ws); err != nil {
		return err
	}
	_, err := ws.Seek(position, io.SeekStart)
	return errors.Wrap(err, "seeking to the stream end")
}

// deferredWriter buffers writes until flushed to the real sink.
type deferredWriter struct {
	chunks [][]byte
}

func (dw *deferredWriter) Write(p []byte) (int, error) {
	dw.chunks = append(dw.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func (dw *deferredWriter) flush(w io.Writer) error {
	for _, chunk := range dw.chunks {
		if _, err := w.Write(chunk); err != nil {
			return errors.Wrap(err, "flushing buffered topology document")
		}
	}
	return nil
}
