// mapcomp compiles .des level-description files into a binary map cache.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	mapdef "github.com/christopherlandry/crawl"
)

const appName = "mapcomp"

func main() {
	out := flag.String("o", "maps.cdes", "output cache file")
	lint := flag.Bool("lint", false, "parse and compile only, write nothing")
	seed := flag.Int64("seed", 0, "seed slot resolution (0 keeps the clock seed)")
	flag.Usage = usage
	flag.Parse()
	configureLog()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	parser := mapdef.NewDesParser(mapdef.LintTable{})
	for _, file := range flag.Args() {
		if err := parser.ParseFile(file); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			os.Exit(1)
		}
	}
	maps := parser.Maps()
	logrus.WithField("maps", len(maps)).Info("parsed")

	sb := mapdef.NewSandbox(true)
	defer sb.Close()
	mapdef.RegisterDungeonAPI(sb, flag.Args(), nil)

	failed := 0
	for _, m := range maps {
		if *seed != 0 {
			m.SetSeed(*seed)
		}
		if err := compileChunks(sb, m); err != nil {
			fmt.Fprintf(os.Stderr, "%s: map %s: %v\n", appName, m.Name, err)
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%s: %d of %d maps failed to compile\n",
			appName, failed, len(maps))
		os.Exit(1)
	}

	if *lint {
		fmt.Printf("%d maps OK\n", len(maps))
		return
	}
	if err := mapdef.WriteCache(*out, maps); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d maps to %s\n", len(maps), *out)
}

func compileChunks(sb *mapdef.Sandbox, m *mapdef.MapDef) error {
	for _, c := range []*mapdef.Chunk{&m.Prelude, &m.Main, &m.Validate, &m.Veto} {
		err := c.Compile(sb)
		if err != nil && !errors.Is(err, mapdef.ErrEmptyChunk) {
			return err
		}
	}
	return nil
}

func configureLog() {
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}

func usage() {
	fmt.Printf(`Usage:
  %s [-o cache.cdes] [-lint] [-seed n] <file.des> [file.des ...]

Parses the given .des files, compiles every script chunk and writes all
map definitions to one binary cache. With -lint nothing is written.

Environment:
  LOG_LEVEL   logrus level (debug, info, warn, error); default warn
  LOG_FORMAT  "json" switches to JSON log output
`, appName)
}
