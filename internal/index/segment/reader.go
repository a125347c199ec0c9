package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"strconv"
	"strings"

	"github.com/hack-pad/hackpadfs"
	"github.com/klauspost/compress/zstd"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-regex-search/pkg/errors"
)

// Segment is a decoded shard.
type Segment struct {
	Header   Header
	Postings map[string][]uint32
}

var decoder = mustDecoder()

func mustDecoder() *zstd.Decoder {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic(fmt.Sprintf("segment: creating zstd decoder: %v", err))
	}
	return d
}

// ReadFile reads and decodes the shard at name.
func ReadFile(fsys hackpadfs.FS, name string) (*Segment, error) {
	data, err := hackpadfs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	seg, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", name, err)
	}
	return seg, nil
}

// Decode parses shard bytes. Structural damage is reported as
// ErrCorruptShard.
func Decode(data []byte) (*Segment, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, corrupt("file of %d bytes is shorter than header and footer", len(data))
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicBytes {
		return nil, corrupt("bad magic bytes %x", magic)
	}
	header := Header{
		Magic:      magic,
		Version:    binary.LittleEndian.Uint32(data[4:8]),
		TermCount:  binary.LittleEndian.Uint32(data[8:12]),
		DocCount:   binary.LittleEndian.Uint32(data[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(data[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(data[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(data[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(data[40:48])),
		CreatedAt:  int64(binary.LittleEndian.Uint64(data[48:56])),
	}
	if header.Version != FormatVersion {
		return nil, corrupt("unsupported format version %d", header.Version)
	}
	body := int64(len(data) - FooterSize)
	if !within(header.PostOffset, header.PostSize, body) || !within(header.DictOffset, header.DictSize, body) {
		return nil, corrupt("block offsets out of range")
	}

	footer := data[len(data)-FooterSize:]
	compressed := data[header.PostOffset : header.PostOffset+header.PostSize]
	dictBytes := data[header.DictOffset : header.DictOffset+header.DictSize]
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, corrupt("dictionary checksum mismatch")
	}
	if crc32.ChecksumIEEE(compressed) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, corrupt("postings checksum mismatch")
	}

	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, corrupt("parsing dictionary: %v", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, corrupt("dictionary holds %d terms, header says %d", len(dict), header.TermCount)
	}
	block, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, corrupt("decompressing postings: %v", err)
	}

	postings := make(map[string][]uint32, len(dict))
	for _, entry := range dict {
		if !within(entry.PostOffset, int64(entry.PostLen), int64(len(block))) {
			return nil, corrupt("postings for term %q out of range", entry.Term)
		}
		ids, err := decodeRun(block[entry.PostOffset : entry.PostOffset+int64(entry.PostLen)])
		if err != nil {
			return nil, corrupt("postings for term %q: %v", entry.Term, err)
		}
		if len(ids) != entry.DocFreq {
			return nil, corrupt("term %q has %d postings, dictionary says %d", entry.Term, len(ids), entry.DocFreq)
		}
		postings[entry.Term] = ids
	}
	return &Segment{Header: header, Postings: postings}, nil
}

func decodeRun(run []byte) ([]uint32, error) {
	count, n := binary.Uvarint(run)
	if n <= 0 {
		return nil, fmt.Errorf("bad posting count")
	}
	run = run[n:]
	if count > uint64(len(run)) {
		return nil, fmt.Errorf("posting count %d exceeds run length", count)
	}
	ids := make([]uint32, 0, count)
	var prev uint64
	for i := uint64(0); i < count; i++ {
		delta, n := binary.Uvarint(run)
		if n <= 0 {
			return nil, fmt.Errorf("bad delta at posting %d", i)
		}
		run = run[n:]
		if delta > math.MaxUint32-prev {
			return nil, fmt.Errorf("posting %d overflows uint32", i)
		}
		prev += delta
		ids = append(ids, uint32(prev))
	}
	if len(run) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(run))
	}
	return ids, nil
}

func within(offset, size, limit int64) bool {
	return offset >= 0 && size >= 0 && offset <= limit && size <= limit-offset
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrCorruptShard, fmt.Sprintf(format, args...))
}

// ParseFileName splits <partition>_<seq>.seg. ok is false for other names.
func ParseFileName(name string) (partition string, seq int, ok bool) {
	base, found := strings.CutSuffix(name, FileExt)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndexByte(base, '_')
	if i <= 0 {
		return "", 0, false
	}
	seq, err := strconv.Atoi(base[i+1:])
	if err != nil || seq < 0 {
		return "", 0, false
	}
	return base[:i], seq, true
}
