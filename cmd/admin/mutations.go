package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"gridloot/internal/store"
)

// mutationsCmd replays the JSONL mutation log, newest file last, optionally
// filtered by a document path prefix.
func mutationsCmd(args []string) {
	fs := flag.NewFlagSet("mutations", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	prefix := fs.String("prefix", "", "only entries touching paths under this prefix")
	limit := fs.Int("limit", 0, "print at most N newest entries (0 for all)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "mutations")
	ents, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "mutations-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var recs []store.AuditEntry
	for _, name := range names {
		batch, err := readMutationFile(filepath.Join(dir, name), *prefix)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		recs = append(recs, batch...)
	}

	if *limit > 0 && len(recs) > *limit {
		recs = recs[len(recs)-*limit:]
	}
	for _, e := range recs {
		line := fmt.Sprintf("%s rev=%d paths=%s", e.At.UTC().Format("2006-01-02T15:04:05.000Z"), e.Rev, strings.Join(e.Paths, ","))
		if len(e.Deletes) > 0 {
			line += " deletes=" + strings.Join(e.Deletes, ",")
		}
		fmt.Println(line)
	}
}

func readMutationFile(path, prefix string) ([]store.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []store.AuditEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e store.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if prefix != "" && !touchesPrefix(e, prefix) {
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func touchesPrefix(e store.AuditEntry, prefix string) bool {
	for _, p := range e.Paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, p := range e.Deletes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}
