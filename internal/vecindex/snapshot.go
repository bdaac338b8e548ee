package vecindex

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
)

var snapshotMagic = [4]byte{'R', 'V', 'X', '1'}

// marshalSnapshot layout (little endian):
//
//	magic[4] dim(u32) n(u32)
//	n x { labelLen(u32) label vec(f32[dim]) }
//	crc32(u32) over everything before it
func marshalSnapshot(dim int, recs []Record) []byte {
	size := 12 + 4
	for _, r := range recs {
		size += 4 + len(r.Label) + 4*dim
	}
	out := make([]byte, 0, size)
	out = append(out, snapshotMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(recs)))
	for _, r := range recs {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(r.Label)))
		out = append(out, r.Label...)
		for _, f := range r.Vector {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out))
}

func unmarshalSnapshot(data []byte) (int, []Record, error) {
	if len(data) < 16 || [4]byte(data[:4]) != snapshotMagic {
		return 0, nil, errors.New("vecindex: not a snapshot")
	}
	body, sum := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return 0, nil, errors.New("vecindex: snapshot checksum mismatch")
	}
	off := 4
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(body[off : off+4]); off += 4; return v }
	dim := int(getU32())
	n := int(getU32())
	recs := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		if off+4 > len(body) {
			return 0, nil, errors.New("vecindex: snapshot truncated")
		}
		labelLen := int(getU32())
		if off+labelLen+4*dim > len(body) {
			return 0, nil, errors.New("vecindex: snapshot truncated record")
		}
		label := string(body[off : off+labelLen])
		off += labelLen
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(getU32())
		}
		recs = append(recs, newRecord(i, label, vec))
	}
	return dim, recs, nil
}

// writeFileAtomic replaces path with data through a synced temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot: %w", err)
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
