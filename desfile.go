// desfile.go — the .des level-description file parser.
//
// FORMAT
// ======
// A .des file is a sequence of map definitions. Each begins with a NAME:
// directive and runs until the next NAME: or end of file. Directives are
// one per line:
//
//	NAME:    unique map name
//	DEPTH:   comma-separated level ranges ([!]branch:low[-high])
//	PLACE:   fixed placement spot
//	TAGS:    whitespace-separated tags
//	ORIENT:  north/south/east/west/northeast/.../encompass/float/none
//	CHANCE:  selection weight (WEIGHT: is an alias)
//	MONS:    monster list, one slot per directive
//	ITEM:    item list, one slot per directive
//	SUBST:   glyph substitution spec
//	SHUFFLE: glyph shuffle spec
//	KFEAT:   <key> = feature spec
//	KITEM:   <key> = item spec
//	KMONS:   <key> = monster spec
//	MAP ... ENDMAP   the glyph grid, one line per row
//
// A line starting with ":" appends its remainder to the map's main script
// chunk. "{{" opens an inline script block closed by "}}"; a bare block
// before the first main-line goes to the prelude, and the block openers
// "validate {{" and "veto {{" feed those chunks instead. Outside any map,
// "default-depth:" sets the ambient depth list applied to maps that
// declare none, and "{{" blocks feed the file-level prelude of every
// following map.
//
// Authored line numbers are recorded on every chunk fragment so script
// errors surface at the .des line the author wrote.
package mapdef

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DesParser accumulates map definitions from .des sources.
type DesParser struct {
	lookup NameTable

	// DefaultDepths applies to definitions that declare no DEPTH: of
	// their own, per the most recent default-depth: directive.
	DefaultDepths []LevelRange

	maps  []*MapDef
	names map[string]bool
}

// NewDesParser builds a parser resolving entity names through lookup.
func NewDesParser(lookup NameTable) *DesParser {
	return &DesParser{lookup: lookup, names: map[string]bool{}}
}

// Maps returns every definition parsed so far, in file order.
func (p *DesParser) Maps() []*MapDef { return p.maps }

// ParseFile parses one .des file from disk.
func (p *DesParser) ParseFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.Parse(f, path)
}

// chunkTarget selects which chunk an open {{ }} block feeds.
type chunkTarget int

const (
	toPrelude chunkTarget = iota
	toMain
	toValidate
	toVeto
)

type desState struct {
	file string
	cur  *MapDef

	// filePrelude collects file-level {{ }} blocks seen outside any map;
	// each fragment carries its authored line number.
	filePrelude []chunkFrag

	inMap   bool
	inBlock bool
	target  chunkTarget
	sawMain bool
}

type chunkFrag struct {
	line int
	text string
}

// Parse reads .des text from r. file names the source for diagnostics.
func (p *DesParser) Parse(r io.Reader, file string) error {
	st := &desState{file: file}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lnum := 0
	for sc.Scan() {
		lnum++
		if err := p.parseLine(st, lnum, sc.Text()); err != nil {
			return fmt.Errorf("%s:%d: %w", file, lnum, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	if st.inBlock {
		return fmt.Errorf("%s: unterminated {{ block at end of file", file)
	}
	if st.inMap {
		return fmt.Errorf("%s: unterminated MAP block at end of file", file)
	}
	return p.finishMap(st)
}

func (p *DesParser) parseLine(st *desState, lnum int, raw string) error {
	line := strings.TrimRight(raw, " \t")

	if st.inBlock {
		if t := strings.TrimSpace(line); t == "}}" || strings.HasSuffix(t, "}}") {
			before := strings.TrimSuffix(strings.TrimSpace(line), "}}")
			if before != "" {
				p.addChunkLine(st, lnum, before)
			}
			st.inBlock = false
			return nil
		}
		p.addChunkLine(st, lnum, line)
		return nil
	}

	if st.inMap {
		if strings.TrimSpace(line) == "ENDMAP" {
			st.inMap = false
			return nil
		}
		st.cur.Map.AddLine(line)
		return nil
	}

	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "" || strings.HasPrefix(trimmed, "#"):
		return nil

	case strings.HasPrefix(trimmed, "{{"):
		return p.openBlock(st, lnum, trimmed, toPrelude)

	case strings.HasPrefix(trimmed, "validate {{"):
		return p.openBlock(st, lnum, strings.TrimPrefix(trimmed, "validate "), toValidate)

	case strings.HasPrefix(trimmed, "veto {{"):
		return p.openBlock(st, lnum, strings.TrimPrefix(trimmed, "veto "), toVeto)

	case strings.HasPrefix(trimmed, ":"):
		if st.cur == nil {
			return fmt.Errorf("script line outside any map")
		}
		st.cur.AddMainLine(lnum, strings.TrimPrefix(trimmed, ":"))
		st.sawMain = true
		return nil

	case trimmed == "MAP":
		if st.cur == nil {
			return fmt.Errorf("MAP block outside any map")
		}
		st.inMap = true
		return nil
	}

	dir, rest, ok := strings.Cut(trimmed, ":")
	if !ok {
		return fmt.Errorf("unrecognized line %q", trimmed)
	}
	dir = strings.ToUpper(strings.TrimSpace(dir))
	rest = strings.TrimSpace(rest)

	if dir == "DEFAULT-DEPTH" {
		if rest == "" {
			p.DefaultDepths = nil
			return nil
		}
		ranges, err := ParseDepthRanges(rest)
		if err != nil {
			return err
		}
		p.DefaultDepths = ranges
		return nil
	}

	if dir == "NAME" {
		if err := p.finishMap(st); err != nil {
			return err
		}
		if rest == "" {
			return fmt.Errorf("NAME: needs a map name")
		}
		if p.names[rest] {
			return fmt.Errorf("duplicate map name %q", rest)
		}
		p.names[rest] = true
		st.cur = NewMapDef(p.lookup)
		st.cur.Name = rest
		st.cur.SetFile(st.file)
		st.sawMain = false
		for _, fr := range st.filePrelude {
			st.cur.AddPreludeLine(fr.line, fr.text)
		}
		return nil
	}

	if st.cur == nil {
		return fmt.Errorf("%s: directive outside any map", dir)
	}

	switch dir {
	case "DEPTH":
		return st.cur.AddDepths(rest)
	case "PLACE":
		st.cur.Place = rest
	case "TAGS":
		st.cur.AddTags(rest)
	case "ORIENT":
		o, ok := ParseOrient(rest)
		if !ok {
			return fmt.Errorf("bad ORIENT: %q", rest)
		}
		st.cur.Orient = o
	case "CHANCE", "WEIGHT":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 {
			return fmt.Errorf("bad %s: %q", dir, rest)
		}
		st.cur.Chance = n
	case "MONS":
		return st.cur.Mons.AddMons(rest, false)
	case "ITEM":
		return st.cur.Items.AddItem(rest, false)
	case "SUBST":
		return st.cur.Map.AddSubst(rest)
	case "SHUFFLE":
		return st.cur.Map.AddShuffle(rest)
	case "KFEAT":
		return st.cur.AddKeyFeat(rest)
	case "KITEM":
		return st.cur.AddKeyItem(rest)
	case "KMONS":
		return st.cur.AddKeyMons(rest)
	default:
		return fmt.Errorf("unknown directive %s:", dir)
	}
	return nil
}

// openBlock enters a {{ }} region. Inline one-liners ("{{ x = 1 }}") never
// leave block mode.
func (p *DesParser) openBlock(st *desState, lnum int, trimmed string, target chunkTarget) error {
	if target != toPrelude && st.cur == nil {
		return fmt.Errorf("script block outside any map")
	}
	st.target = target
	if target == toPrelude && st.cur != nil && st.sawMain {
		st.target = toMain
	}
	st.inBlock = true
	body := strings.TrimSpace(strings.TrimPrefix(trimmed, "{{"))
	if strings.HasSuffix(body, "}}") {
		body = strings.TrimSpace(strings.TrimSuffix(body, "}}"))
		st.inBlock = false
	}
	if body != "" {
		p.addChunkLine(st, lnum, body)
	}
	return nil
}

func (p *DesParser) addChunkLine(st *desState, lnum int, text string) {
	if st.cur == nil {
		st.filePrelude = append(st.filePrelude, chunkFrag{lnum, text})
		return
	}
	switch st.target {
	case toPrelude:
		st.cur.AddPreludeLine(lnum, text)
	case toMain:
		st.cur.AddMainLine(lnum, text)
	case toValidate:
		st.cur.Validate.Add(lnum, text)
	case toVeto:
		st.cur.Veto.Add(lnum, text)
	}
}

// finishMap applies default depths, verifies and files the current map.
func (p *DesParser) finishMap(st *desState) error {
	if st.cur == nil {
		return nil
	}
	m := st.cur
	st.cur = nil
	if !m.HasDepth() && m.Place == "" && len(p.DefaultDepths) > 0 {
		m.Depths = append([]LevelRange(nil), p.DefaultDepths...)
	}
	if err := m.Verify(); err != nil {
		return err
	}
	p.maps = append(p.maps, m)
	return nil
}
