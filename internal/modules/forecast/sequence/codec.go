package sequence

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"math"
	"regexp"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

const (
	shardMagic   = "MSEQ"
	ShardVersion = 1
	// magic, version, T, F, N, id length
	headerSize = 4 + 2 + 4 + 4 + 4 + 2
)

// ShardFormatError reports bytes that are not a readable shard.
type ShardFormatError struct {
	Reason string
}

func (e *ShardFormatError) Error() string { return "shard format: " + e.Reason }

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ShardKey is the deterministic object key of a machine's shard. Ids that
// need sanitizing get a digest of the raw id appended, so "a.b" and "a_b"
// land on different keys.
func ShardKey(prefix, machineID string) string {
	name := unsafeKeyChars.ReplaceAllString(machineID, "_")
	if name != machineID {
		sum := sha256.Sum256([]byte(machineID))
		name += "-" + hex.EncodeToString(sum[:])[:12]
	}
	return objstore.Join(prefix, "shards", "machine_"+name+"_seq.bin")
}

// ShardKeyCollisionError reports two machines whose shards would share one
// object key.
type ShardKeyCollisionError struct {
	Key      string
	Machines [2]string
}

func (e *ShardKeyCollisionError) Error() string {
	return fmt.Sprintf("machines %q and %q share shard key %s", e.Machines[0], e.Machines[1], e.Key)
}

func ShardPrefix(prefix string) string {
	return objstore.Join(prefix, "shards") + "/"
}

// Encode serializes a batch little-endian with a trailing CRC-32 (IEEE) of
// all preceding bytes.
func Encode(b *domain.SequenceBatch) ([]byte, error) {
	n := b.Len()
	if len(b.Features) != n*b.TimeSteps*b.NumFeatures {
		return nil, fmt.Errorf("batch %s: %d feature values for shape [%d,%d,%d]", b.MachineID, len(b.Features), n, b.TimeSteps, b.NumFeatures)
	}
	if len(b.MachineID) > math.MaxUint16 {
		return nil, fmt.Errorf("machine id too long")
	}
	size := headerSize + len(b.MachineID) + 4*len(b.Features) + n + 4
	buf := make([]byte, size)
	off := copy(buf, shardMagic)
	binary.LittleEndian.PutUint16(buf[off:], ShardVersion)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], uint32(b.TimeSteps))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(b.NumFeatures))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(n))
	off += 4
	binary.LittleEndian.PutUint16(buf[off:], uint16(len(b.MachineID)))
	off += 2
	off += copy(buf[off:], b.MachineID)
	for _, v := range b.Features {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
		off += 4
	}
	for _, l := range b.Labels {
		buf[off] = byte(l)
		off++
	}
	binary.LittleEndian.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf, nil
}

func Decode(raw []byte) (*domain.SequenceBatch, error) {
	if len(raw) < headerSize+4 {
		return nil, &ShardFormatError{Reason: fmt.Sprintf("%d bytes is shorter than a header", len(raw))}
	}
	if string(raw[:4]) != shardMagic {
		return nil, &ShardFormatError{Reason: "bad magic"}
	}
	body, trailer := raw[:len(raw)-4], raw[len(raw)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return nil, &ShardFormatError{Reason: "checksum mismatch"}
	}
	off := 4
	if v := binary.LittleEndian.Uint16(raw[off:]); v != ShardVersion {
		return nil, &ShardFormatError{Reason: fmt.Sprintf("unsupported version %d", v)}
	}
	off += 2
	t := int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	f := int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	n := int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	idLen := int(binary.LittleEndian.Uint16(raw[off:]))
	off += 2

	values := uint64(n) * uint64(t) * uint64(f)
	want := uint64(headerSize) + uint64(idLen) + 4*values + uint64(n)
	if uint64(len(body)) != want {
		return nil, &ShardFormatError{Reason: fmt.Sprintf("body is %d bytes, header implies %d", len(body), want)}
	}
	b := &domain.SequenceBatch{
		MachineID:   string(raw[off : off+idLen]),
		TimeSteps:   t,
		NumFeatures: f,
		Features:    make([]float32, values),
		Labels:      make([]int8, n),
	}
	off += idLen
	for i := range b.Features {
		b.Features[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	for i := range b.Labels {
		b.Labels[i] = int8(raw[off])
		off++
	}
	return b, nil
}
