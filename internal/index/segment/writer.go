package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"path"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/hack-pad/hackpadfs"
	"github.com/klauspost/compress/zstd"
)

// MagicBytes identifies a valid .seg shard file.
const (
	MagicBytes    uint32 = 0x4E475258
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
	FileExt              = ".seg"
)

// Header is the 64-byte header written at the start of every shard.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	CreatedAt  int64
}

// DictEntry maps an n-gram to its posting run inside the decompressed
// postings block.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

var encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

// Encode serialises postings into shard bytes. ID lists are sorted and
// deduplicated before delta encoding.
func Encode(postings map[string][]uint32) ([]byte, error) {
	if len(postings) == 0 {
		return nil, fmt.Errorf("cannot write empty segment")
	}
	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	docs := roaring.New()
	var block []byte
	dict := make([]DictEntry, 0, len(terms))
	for _, term := range terms {
		ids := roaring.BitmapOf(postings[term]...)
		docs.Or(ids)

		start := len(block)
		block = binary.AppendUvarint(block, ids.GetCardinality())
		var prev uint32
		it := ids.Iterator()
		for it.HasNext() {
			id := it.Next()
			block = binary.AppendUvarint(block, uint64(id-prev))
			prev = id
		}
		dict = append(dict, DictEntry{
			Term:       term,
			PostOffset: int64(start),
			PostLen:    len(block) - start,
			DocFreq:    int(ids.GetCardinality()),
		})
	}

	compressed := encoder.EncodeAll(block, nil)
	dictData, err := json.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("marshaling dictionary: %w", err)
	}

	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(dict)),
		DocCount:   uint32(docs.GetCardinality()),
		PostOffset: int64(HeaderSize),
		PostSize:   int64(len(compressed)),
		CreatedAt:  time.Now().Unix(),
	}
	header.DictOffset = header.PostOffset + header.PostSize
	header.DictSize = int64(len(dictData))

	out := make([]byte, HeaderSize, HeaderSize+len(compressed)+len(dictData)+FooterSize)
	binary.LittleEndian.PutUint32(out[0:4], header.Magic)
	binary.LittleEndian.PutUint32(out[4:8], header.Version)
	binary.LittleEndian.PutUint32(out[8:12], header.TermCount)
	binary.LittleEndian.PutUint32(out[12:16], header.DocCount)
	binary.LittleEndian.PutUint64(out[16:24], uint64(header.DictOffset))
	binary.LittleEndian.PutUint64(out[24:32], uint64(header.DictSize))
	binary.LittleEndian.PutUint64(out[32:40], uint64(header.PostOffset))
	binary.LittleEndian.PutUint64(out[40:48], uint64(header.PostSize))
	binary.LittleEndian.PutUint64(out[48:56], uint64(header.CreatedAt))

	out = append(out, compressed...)
	out = append(out, dictData...)

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], crc32.ChecksumIEEE(compressed))
	binary.LittleEndian.PutUint32(footer[8:12], header.DocCount)
	return append(out, footer...), nil
}

// FileName returns the shard file name for partition and seq.
func FileName(partition string, seq int) string {
	return fmt.Sprintf("%s_%04d%s", partition, seq, FileExt)
}

// WriteFile encodes postings and stores them as dir/<partition>_<seq>.seg.
// It returns the file name.
func WriteFile(fsys hackpadfs.FS, dir, partition string, seq int, postings map[string][]uint32) (string, error) {
	data, err := Encode(postings)
	if err != nil {
		return "", err
	}
	if err := hackpadfs.MkdirAll(fsys, dir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	name := FileName(partition, seq)
	if err := hackpadfs.WriteFullFile(fsys, path.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing segment file: %w", err)
	}
	return name, nil
}
