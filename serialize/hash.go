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

	"github.com/gomlx/irgraph/ir"
)

// hashWriter is a discard sink accumulating the weak word-sum checksum of
// everything written through it, across chunk boundaries.
type hashWriter struct {
	sum     uint64
	partial [8]byte
	pending int
}

func (hw *hashWriter) Write(p []byte) (int, error) {
	written := len(p)
	if hw.pending > 0 {
		need := 8 - hw.pending
		if need > len(p) {
			need = len(p)
		}
		copy(hw.partial[hw.pending:], p[:need])
		hw.pending += need
		p = p[need:]
		if hw.pending == 8 {
			hw.sum += binary.LittleEndian.Uint64(hw.partial[:])
			hw.pending = 0
		}
	}
	for len(p) >= 8 {
		hw.sum += binary.LittleEndian.Uint64(p)
		p = p[8:]
	}
	if len(p) > 0 {
		copy(hw.partial[:], p)
		hw.pending = len(p)
	}
	return written, nil
}

// finish folds any trailing bytes into the sum.
func (hw *hashWriter) finish() uint64 {
	sum := hw.sum
	for i := 0; i < hw.pending; i++ {
		sum += uint64(hw.partial[i])
	}
	return sum
}

// combineHashes mixes a value into a running seed.
func combineHashes(seed, value uint64) uint64 {
	return seed ^ (value + 0x9e3779b9 + (seed << 6) + (seed >> 2))
}

// Hash fingerprints a function by running the codec into checksum-only sinks.
// Deterministic mode is forced so the fingerprint reflects graph structure,
// attributes and payloads, not allocation accidents.
func Hash(f *ir.Function, opts Options) (uint64, error) {
	opts.Deterministic = true
	xmlSink := &hashWriter{}
	binSink := &hashWriter{}
	if err := Serialize(f, xmlSink, binSink, opts); err != nil {
		return 0, err
	}
	var combined uint64
	combined = combineHashes(combined, xmlSink.finish())
	combined = combineHashes(combined, binSink.finish())
	return combined, nil
}
