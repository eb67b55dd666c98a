// cache.go — the two-tier binary map cache.
//
// LAYOUT
// ======
//
//	magic "CDES", version int32
//	bodies  one blob per map, in file order
//	index   count, then one record per map:
//	          name, tags, place, orient, chance, depth ranges, body offset
//	trailer int64 offset of the index
//
// The index is small and read eagerly; it yields summary definitions that
// answer tag/depth queries without touching their bodies. A body is read
// on first use through the offset recorded in its index record. Placement
// and keyed specs are persisted as their spec strings and re-parsed on
// load, so the cache never depends on entity ids staying stable between
// writes.
package mapdef

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

const (
	cacheMagic   = "CDES"
	cacheVersion = int32(1)

	// caps on variable-length payloads read back from a cache
	cacheMaxName = 512
	cacheMaxLine = 4096
)

// WriteCache writes every definition to one cache file at path.
func WriteCache(path string, maps []*MapDef) error {
	f, err := os.Create(path)
	if err != nil {
		return &SerializationError{File: path, Err: err}
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	cw := &countingWriter{w: bw}
	fail := func(err error) error {
		return &SerializationError{File: path, Err: err}
	}

	if _, err := io.WriteString(cw, cacheMagic); err != nil {
		return fail(err)
	}
	if err := writeInt32(cw, cacheVersion); err != nil {
		return fail(err)
	}

	offsets := make([]int64, len(maps))
	for i, m := range maps {
		offsets[i] = cw.n
		if err := m.writeBody(cw); err != nil {
			return fail(err)
		}
	}

	indexOff := cw.n
	if err := writeInt32(cw, int32(len(maps))); err != nil {
		return fail(err)
	}
	for i, m := range maps {
		if err := m.writeIndexRecord(cw, offsets[i]); err != nil {
			return fail(err)
		}
	}
	if err := writeInt64(cw, indexOff); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	log.WithField("maps", len(maps)).Infof("wrote map cache %s", path)
	return nil
}

// ReadCacheIndex reads only the index of a cache file, returning summary
// definitions whose bodies load lazily.
func ReadCacheIndex(path string, lookup NameTable) ([]*MapDef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SerializationError{File: path, Err: err}
	}
	defer f.Close()
	fail := func(err error) ([]*MapDef, error) {
		return nil, &SerializationError{File: path, Err: err}
	}

	if err := checkCacheHeader(f); err != nil {
		return fail(err)
	}
	if _, err := f.Seek(-8, io.SeekEnd); err != nil {
		return fail(err)
	}
	indexOff, err := readInt64(f)
	if err != nil {
		return fail(err)
	}
	if _, err := f.Seek(indexOff, io.SeekStart); err != nil {
		return fail(err)
	}

	r := bufio.NewReader(f)
	count, err := readInt32(r)
	if err != nil {
		return fail(err)
	}
	if count < 0 {
		return fail(fmt.Errorf("bad map count %d", count))
	}
	maps := make([]*MapDef, 0, count)
	for i := int32(0); i < count; i++ {
		m := NewMapDef(lookup)
		if err := m.readIndexRecord(r, path); err != nil {
			return fail(err)
		}
		maps = append(maps, m)
	}
	log.WithField("maps", len(maps)).Debugf("read map cache index %s", path)
	return maps, nil
}

func checkCacheHeader(r io.Reader) error {
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return err
	}
	if string(magic) != cacheMagic {
		return fmt.Errorf("bad cache magic %q", magic)
	}
	v, err := readInt32(r)
	if err != nil {
		return err
	}
	if v != cacheVersion {
		return fmt.Errorf("cache version %d, want %d", v, cacheVersion)
	}
	return nil
}

// Load completes an index-only definition by reading its body from the
// cache file it came from. Loading a full definition is a no-op.
func (m *MapDef) Load() error {
	if !m.indexOnly {
		return nil
	}
	f, err := os.Open(m.cacheFile)
	if err != nil {
		return &SerializationError{File: m.cacheFile, Err: err}
	}
	defer f.Close()
	if _, err := f.Seek(m.cacheOffset, io.SeekStart); err != nil {
		return &SerializationError{File: m.cacheFile, Err: err}
	}
	if err := m.readBody(bufio.NewReader(f)); err != nil {
		return &SerializationError{File: m.cacheFile, Err: err}
	}
	m.indexOnly = false
	log.WithField("map", m.Name).Debug("loaded map body")
	return nil
}

// --- index records ---

func (m *MapDef) writeIndexRecord(w io.Writer, bodyOff int64) error {
	if err := writeString(w, m.Name, 0); err != nil {
		return err
	}
	if err := writeString(w, m.TagsString(), 0); err != nil {
		return err
	}
	if err := writeString(w, m.Place, 0); err != nil {
		return err
	}
	if err := writeInt32(w, int32(m.Orient)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(m.Chance)); err != nil {
		return err
	}
	if err := writeDepthRanges(w, m.Depths); err != nil {
		return err
	}
	return writeInt64(w, bodyOff)
}

func (m *MapDef) readIndexRecord(r io.Reader, file string) error {
	var err error
	if m.Name, err = readString(r, cacheMaxName); err != nil {
		return err
	}
	tags, err := readString(r, 0)
	if err != nil {
		return err
	}
	m.AddTags(tags)
	if m.Place, err = readString(r, cacheMaxName); err != nil {
		return err
	}
	orient, err := readInt32(r)
	if err != nil {
		return err
	}
	m.Orient = Orient(orient)
	chance, err := readInt32(r)
	if err != nil {
		return err
	}
	m.Chance = int(chance)
	if m.Depths, err = readDepthRanges(r); err != nil {
		return err
	}
	off, err := readInt64(r)
	if err != nil {
		return err
	}
	m.indexOnly = true
	m.cacheFile = file
	m.cacheOffset = off
	return nil
}

// --- bodies ---

func (m *MapDef) writeBody(w io.Writer) error {
	if err := writeStringList(w, m.Map.Lines()); err != nil {
		return err
	}
	if err := writeStringList(w, m.ShuffleStrings()); err != nil {
		return err
	}
	if err := writeStringList(w, m.SubstStrings()); err != nil {
		return err
	}
	if err := writeSpecList(w, m.Mons.RawSpecs(), m.Mons.FixFlags()); err != nil {
		return err
	}
	if err := writeSpecList(w, m.Items.RawSpecs(), m.Items.FixFlags()); err != nil {
		return err
	}
	if err := m.writeKeyed(w); err != nil {
		return err
	}
	for _, c := range []*Chunk{&m.Prelude, &m.Main, &m.Validate, &m.Veto} {
		if err := c.Write(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MapDef) readBody(r io.Reader) error {
	lines, err := readStringList(r)
	if err != nil {
		return err
	}
	m.Map.Clear()
	for _, l := range lines {
		m.Map.AddLine(l)
	}
	shuffles, err := readStringList(r)
	if err != nil {
		return err
	}
	for _, s := range shuffles {
		if err := m.Map.AddShuffle(s); err != nil {
			return err
		}
	}
	substs, err := readStringList(r)
	if err != nil {
		return err
	}
	for _, s := range substs {
		if err := m.Map.AddSubst(s); err != nil {
			return err
		}
	}
	if err := readSpecList(r, func(spec string, fix bool) error {
		return m.Mons.AddMons(spec, fix)
	}); err != nil {
		return err
	}
	if err := readSpecList(r, func(spec string, fix bool) error {
		return m.Items.AddItem(spec, fix)
	}); err != nil {
		return err
	}
	if err := m.readKeyed(r); err != nil {
		return err
	}
	for _, c := range []*Chunk{&m.Prelude, &m.Main, &m.Validate, &m.Veto} {
		if err := c.Read(r); err != nil {
			return err
		}
	}
	return nil
}

func writeSpecList(w io.Writer, specs []string, fixes []bool) error {
	if err := writeInt32(w, int32(len(specs))); err != nil {
		return err
	}
	for i, s := range specs {
		if err := writeString(w, s, 0); err != nil {
			return err
		}
		if err := writeBool(w, fixes[i]); err != nil {
			return err
		}
	}
	return nil
}

func readSpecList(r io.Reader, add func(spec string, fix bool) error) error {
	n, err := readInt32(r)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("bad spec count %d", n)
	}
	for i := int32(0); i < n; i++ {
		s, err := readString(r, cacheMaxLine)
		if err != nil {
			return err
		}
		fix, err := readBool(r)
		if err != nil {
			return err
		}
		if err := add(s, fix); err != nil {
			return err
		}
	}
	return nil
}

func (m *MapDef) writeKeyed(w io.Writer) error {
	if err := writeInt32(w, int32(len(m.Keyed))); err != nil {
		return err
	}
	// deterministic order: glyphs ascend
	for key := 0; key < 256; key++ {
		ks, ok := m.Keyed[byte(key)]
		if !ok {
			continue
		}
		if err := writeByteTag(w, ks.Key); err != nil {
			return err
		}
		if err := writeString(w, ks.Feat.raw, 0); err != nil {
			return err
		}
		if err := writeSpecList(w, ks.Mons.RawSpecs(), ks.Mons.FixFlags()); err != nil {
			return err
		}
		if err := writeSpecList(w, ks.Item.RawSpecs(), ks.Item.FixFlags()); err != nil {
			return err
		}
	}
	return nil
}

func (m *MapDef) readKeyed(r io.Reader) error {
	n, err := readInt32(r)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("bad keyed count %d", n)
	}
	for i := int32(0); i < n; i++ {
		key, err := readByteTag(r)
		if err != nil {
			return err
		}
		ks := m.KeySpec(key, true)
		feat, err := readString(r, cacheMaxLine)
		if err != nil {
			return err
		}
		if feat != "" {
			if err := ks.SetFeat(m.lookup, feat, false); err != nil {
				return err
			}
		}
		if err := readSpecList(r, func(spec string, fix bool) error {
			return ks.Mons.AddMons(spec, fix)
		}); err != nil {
			return err
		}
		if err := readSpecList(r, func(spec string, fix bool) error {
			return ks.Item.AddItem(spec, fix)
		}); err != nil {
			return err
		}
	}
	return nil
}

// countingWriter tracks the absolute file offset through a buffered writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
