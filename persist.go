// persist.go — little-endian binary primitives shared by the chunk format
// and the map cache. Strings are length-prefixed (u32) and may be capped;
// a cap violation on read is a SerializationError, since it means the
// stream is corrupt or hostile rather than merely large.
package mapdef

import (
	"encoding/binary"
	"fmt"
	"io"
)

func writeByteTag(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByteTag(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func writeInt32(w io.Writer, n int32) error {
	return binary.Write(w, binary.LittleEndian, n)
}

func readInt32(r io.Reader) (int32, error) {
	var n int32
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func writeInt64(w io.Writer, n int64) error {
	return binary.Write(w, binary.LittleEndian, n)
}

func readInt64(r io.Reader) (int64, error) {
	var n int64
	err := binary.Read(r, binary.LittleEndian, &n)
	return n, err
}

func writeBool(w io.Writer, b bool) error {
	if b {
		return writeByteTag(w, 1)
	}
	return writeByteTag(w, 0)
}

func readBool(r io.Reader) (bool, error) {
	b, err := readByteTag(r)
	return b != 0, err
}

// writeString writes a length-prefixed string. cap <= 0 means uncapped.
func writeString(w io.Writer, s string, cap int) error {
	if cap > 0 && len(s) > cap {
		return fmt.Errorf("string of %d bytes exceeds cap %d", len(s), cap)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader, cap int) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if cap > 0 && int(n) > cap {
		return "", fmt.Errorf("string of %d bytes exceeds cap %d", n, cap)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStringList(w io.Writer, ss []string) error {
	if err := writeInt32(w, int32(len(ss))); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(w, s, 0); err != nil {
			return err
		}
	}
	return nil
}

func readStringList(r io.Reader) ([]string, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative list length %d", n)
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := readString(r, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func writeLevelRange(w io.Writer, lr LevelRange) error {
	if err := writeString(w, lr.Branch, 0); err != nil {
		return err
	}
	if err := writeInt32(w, int32(lr.Shallowest)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(lr.Deepest)); err != nil {
		return err
	}
	return writeBool(w, lr.Deny)
}

func readLevelRange(r io.Reader) (LevelRange, error) {
	var lr LevelRange
	var err error
	if lr.Branch, err = readString(r, 0); err != nil {
		return lr, err
	}
	var n int32
	if n, err = readInt32(r); err != nil {
		return lr, err
	}
	lr.Shallowest = int(n)
	if n, err = readInt32(r); err != nil {
		return lr, err
	}
	lr.Deepest = int(n)
	lr.Deny, err = readBool(r)
	return lr, err
}

func writeDepthRanges(w io.Writer, ranges []LevelRange) error {
	if err := writeInt32(w, int32(len(ranges))); err != nil {
		return err
	}
	for _, lr := range ranges {
		if err := writeLevelRange(w, lr); err != nil {
			return err
		}
	}
	return nil
}

func readDepthRanges(r io.Reader) ([]LevelRange, error) {
	n, err := readInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative range count %d", n)
	}
	out := make([]LevelRange, 0, n)
	for i := int32(0); i < n; i++ {
		lr, err := readLevelRange(r)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, nil
}
