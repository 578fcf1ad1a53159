/*
 * snap.go, part of gocte.
 * 
 * Copyright 2025 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 * 
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as 
 * published by the Free Software Foundation; either version 2.1 of the 
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General 
 * Public License along with this program.  If not, see 
 * <http://www.gnu.org/licenses/>.
 * 
 * Gocte is developed at the laboratory for instruction in Swedish, Department of Chemistry,
 * University of Helsinki, Finland.  
 * 
 */

// Package snap reads and writes snapshots: Go values encoded with encoding/gob
// and compressed. The compression is chosen from the last letter of the file
// name, the way goChem's stf trajectories do it: 'l' is LZW, 'z' is gzip,
// 'r' is raw deflate, anything else ('s', 'f', and our own ".snap") is
// z-standard.
package snap

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/lzw"
	"encoding/gob"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	cte "github.com/rmera/gocte"
)

const lzwLitwidth int = 8

// Level is the compression level used for the deflate-based formats.
var Level = flate.BestCompression

func newWriter(name string, w io.Writer) (io.WriteCloser, error) {
	switch format(name) {
	case 'l':
		return lzw.NewWriter(w, lzw.MSB, lzwLitwidth), nil
	case 'z':
		return gzip.NewWriterLevel(w, Level)
	case 'r':
		return flate.NewWriter(w, Level)
	default:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	}
}

// zstdCloser makes a *zstd.Decoder an io.ReadCloser.
type zstdCloser struct {
	*zstd.Decoder
}

func (Z zstdCloser) Close() error {
	Z.Decoder.Close()
	return nil
}

func newReader(name string, r io.Reader) (io.ReadCloser, error) {
	switch format(name) {
	case 'l':
		return lzw.NewReader(r, lzw.MSB, lzwLitwidth), nil
	case 'z':
		return gzip.NewReader(r)
	case 'r':
		return flate.NewReader(r), nil
	default:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdCloser{d}, nil
	}
}

func format(name string) byte {
	if name == "" {
		return 0
	}
	return strings.ToLower(name)[len(name)-1]
}

// Write encodes v and writes it, compressed, to the file name.
func Write(name string, v any) error {
	f, err := os.Create(name)
	if err != nil {
		return cte.NewError("can't create snapshot", name, false, err, "snap.Write")
	}
	buf := bufio.NewWriter(f)
	z, err := newWriter(name, buf)
	if err != nil {
		f.Close()
		return cte.NewError("can't start compression", name, false, err, "snap.Write")
	}
	if err := gob.NewEncoder(z).Encode(v); err != nil {
		z.Close()
		f.Close()
		return cte.NewError("can't encode snapshot", name, false, err, "snap.Write")
	}
	if err := z.Close(); err != nil {
		f.Close()
		return cte.NewError("can't finish compression", name, false, err, "snap.Write")
	}
	if err := buf.Flush(); err != nil {
		f.Close()
		return cte.NewError("can't write snapshot", name, false, err, "snap.Write")
	}
	if err := f.Close(); err != nil {
		return cte.NewError("can't close snapshot", name, false, err, "snap.Write")
	}
	return nil
}

// Read decodes the snapshot in the file name into v, which must be a pointer.
func Read(name string, v any) error {
	f, err := os.Open(name)
	if err != nil {
		return cte.NewError("can't open snapshot", name, false, err, "snap.Read")
	}
	defer f.Close()
	z, err := newReader(name, bufio.NewReader(f))
	if err != nil {
		return cte.NewError("can't start decompression", name, true, err, "snap.Read")
	}
	defer z.Close()
	if err := gob.NewDecoder(z).Decode(v); err != nil {
		return cte.NewError("can't decode snapshot", name, true, err, "snap.Read")
	}
	return nil
}

// Load is a typed wrapper around Read.
func Load[T any](name string) (T, error) {
	var ret T
	err := Read(name, &ret)
	return ret, err
}

// Exists returns true if the file name exists.
func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
