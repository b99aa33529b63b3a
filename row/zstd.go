// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package row

import (
	"runtime"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoder is a single shared decoder, matching the storage
// engine's own compr package: a *zstd.Decoder is safe for
// concurrent DecodeAll calls, so one package-level instance serves
// every Decoder rather than allocating one per request.
var zstdDecoder *zstd.Decoder

func init() {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDecoder = d
}

// decompressZstd decompresses a zstd frame written by the storage
// engine for a value blob that exceeded its inline-compression
// threshold (spec's DOMAIN STACK note on optional TTL/value blob
// compression).
func decompressZstd(src []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(src, nil)
}
