// mapdbg is an interactive console for poking at map definitions: load a
// compiled cache or raw .des files, pick a map, and run dgn script
// snippets against it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	mapdef "github.com/christopherlandry/crawl"
)

const (
	appName     = "mapdbg"
	historyFile = ".mapdbg_history"
	promptMain  = "==> "
	promptCont  = "... "
)

var helpText = `
Console commands:
  :maps            List loaded map names
  :map <name>      Select a map (loads its body if needed)
  :show            Print the selected map's grid
  :resolve         Replace the selection with a resolved copy
  :fixup           Apply transforms and normalise the selection
  :quit            Exit

Anything else runs as a script snippet; the selected map is the global
"map" (e.g. dgn.tags(map, "no_monster_gen")).
`

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
func blue(s string) string  { return "\x1b[94m" + s + "\x1b[0m" }

func main() {
	seed := flag.Int64("seed", 0, "seed slot resolution (0 keeps the clock seed)")
	flag.Usage = usage
	flag.Parse()
	configureLog()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	maps, err := loadMaps(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	fmt.Printf("loaded %d maps. Ctrl+D exits, :help lists commands.\n", len(maps))

	os.Exit(repl(maps, *seed))
}

func loadMaps(files []string) (map[string]*mapdef.MapDef, error) {
	out := map[string]*mapdef.MapDef{}
	parser := mapdef.NewDesParser(mapdef.LintTable{})
	for _, file := range files {
		if strings.HasSuffix(file, ".des") {
			if err := parser.ParseFile(file); err != nil {
				return nil, err
			}
			continue
		}
		cached, err := mapdef.ReadCacheIndex(file, mapdef.LintTable{})
		if err != nil {
			return nil, err
		}
		for _, m := range cached {
			out[m.Name] = m
		}
	}
	for _, m := range parser.Maps() {
		out[m.Name] = m
	}
	return out, nil
}

func repl(maps map[string]*mapdef.MapDef, seed int64) int {
	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	sb := mapdef.NewSandbox(true)
	defer sb.Close()
	mapdef.RegisterDungeonAPI(sb, nil, nil)

	var cur *mapdef.MapDef
	for {
		code, ok := readSnippet(ln, sb)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			quit, next := command(maps, cur, trimmed, seed)
			if quit {
				return 0
			}
			if next != cur {
				cur = next
				mapdef.SetMapGlobal(sb, cur)
			}
			continue
		}

		if err := sb.ExecString(code, "console"); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
	}
}

// command handles a ":" console command; next is the (possibly changed)
// selection.
func command(maps map[string]*mapdef.MapDef, cur *mapdef.MapDef, line string, seed int64) (quit bool, next *mapdef.MapDef) {
	next = cur
	fields := strings.Fields(line)
	switch fields[0] {
	case ":quit":
		return true, cur
	case ":help":
		fmt.Print(helpText)
	case ":maps":
		var names []string
		for name := range maps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(blue(name))
		}
	case ":map":
		if len(fields) < 2 {
			fmt.Println("usage: :map <name>")
			return
		}
		m, ok := maps[fields[1]]
		if !ok {
			fmt.Fprintln(os.Stderr, red("no such map: "+fields[1]))
			return
		}
		if err := m.Load(); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return
		}
		if seed != 0 {
			m.SetSeed(seed)
		}
		fmt.Println(green("selected " + m.Name))
		next = m
	case ":show":
		if cur == nil {
			fmt.Println("no map selected")
			return
		}
		for _, l := range cur.Map.Lines() {
			fmt.Println(blue(l))
		}
	case ":resolve":
		if cur == nil {
			fmt.Println("no map selected")
			return
		}
		next = cur.Resolve()
		fmt.Println(green("resolved " + next.Name))
	case ":fixup":
		if cur == nil {
			fmt.Println("no map selected")
			return
		}
		if err := cur.Fixup(); err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			return
		}
		fmt.Println(green("fixed up " + cur.Name))
	default:
		fmt.Println("unknown command. :help lists commands.")
	}
	return
}

// readSnippet reads lines until the accumulated text is a complete script
// chunk, probing completeness with the engine's own parser.
func readSnippet(ln *liner.State, sb *mapdef.Sandbox) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if perr := sb.CheckSyntax(src); perr == nil || !incomplete(perr) {
			return src, true
		}
	}
}

// incomplete reports whether a parse error means "keep typing".
func incomplete(err error) bool {
	return strings.Contains(err.Error(), "<eof>") ||
		strings.Contains(err.Error(), "at EOF")
}

func configureLog() {
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

func usage() {
	fmt.Printf(`Usage:
  %s [-seed n] <maps.cdes | file.des> [...]

Loads map definitions from compiled caches and/or raw .des files and
starts an interactive console for running dgn script snippets against
them.
`, appName)
}
