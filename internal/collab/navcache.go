package collab

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const subframeBytes = 40 // 10 little-endian uint32 words

// FileSubframeCache persists each SV's validated subframes to
// NAV_<NN>.dat files, five fixed 40-byte slots (subframes 1..5) per file, in
// a configured directory. A missing file on startup is not an error: the
// receiver proceeds without cached subframes.
type FileSubframeCache struct {
	dir string
}

// NewFileSubframeCache targets dir for NAV_<NN>.dat files (created on first
// write).
func NewFileSubframeCache(dir string) *FileSubframeCache {
	return &FileSubframeCache{dir: dir}
}

func (c *FileSubframeCache) path(svID int) string {
	return filepath.Join(c.dir, fmt.Sprintf("NAV_%02d.dat", svID))
}

// SaveSubframe writes one subframe's ten words at byte offset
// 40*(frameType-1), implementing navframer.SubframeCache.
func (c *FileSubframeCache) SaveSubframe(svID int, frameType int, words [10]uint32) {
	f, err := os.OpenFile(c.path(svID), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	var buf [subframeBytes]byte
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	f.WriteAt(buf[:], int64(subframeBytes*(frameType-1)))
}

// LoadSubframe reads a previously cached subframe, or ok=false if the file
// or slot does not exist.
func (c *FileSubframeCache) LoadSubframe(svID, frameType int) (words [10]uint32, ok bool) {
	f, err := os.Open(c.path(svID))
	if err != nil {
		return words, false
	}
	defer f.Close()

	var buf [subframeBytes]byte
	if _, err := f.ReadAt(buf[:], int64(subframeBytes*(frameType-1))); err != nil {
		return words, false
	}
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return words, true
}
