package vecindex

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

// WAL frame: payloadLen(u32) crc32(u32) payload
// payload:   id(u64) labelLen(u32) label vec(f32[dim])
const walHeaderSize = 8

func encodeWALRecord(r Record) []byte {
	payload := make([]byte, 0, 12+len(r.Label)+4*len(r.Vector))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(r.ID))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(r.Label)))
	payload = append(payload, r.Label...)
	for _, f := range r.Vector {
		payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(f))
	}

	frame := make([]byte, 0, walHeaderSize+len(payload))
	frame = binary.LittleEndian.AppendUint32(frame, uint32(len(payload)))
	frame = binary.LittleEndian.AppendUint32(frame, crc32.ChecksumIEEE(payload))
	return append(frame, payload...)
}

// decodeWAL returns every intact frame and the byte offset just past the last
// one. Anything after that offset is a torn or corrupt tail.
func decodeWAL(data []byte, dim int) ([]Record, int) {
	var (
		recs []Record
		off  int
	)
	for off+walHeaderSize <= len(data) {
		n := int(binary.LittleEndian.Uint32(data[off : off+4]))
		sum := binary.LittleEndian.Uint32(data[off+4 : off+8])
		end := off + walHeaderSize + n
		if n < 12 || end > len(data) {
			break
		}
		payload := data[off+walHeaderSize : end]
		if crc32.ChecksumIEEE(payload) != sum {
			break
		}
		id := int(binary.LittleEndian.Uint64(payload[0:8]))
		labelLen := int(binary.LittleEndian.Uint32(payload[8:12]))
		if 12+labelLen+4*dim != len(payload) {
			break
		}
		label := string(payload[12 : 12+labelLen])
		vec := make([]float32, dim)
		p := 12 + labelLen
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(payload[p : p+4]))
			p += 4
		}
		recs = append(recs, newRecord(id, label, vec))
		off = end
	}
	return recs, off
}
