package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gridloot/internal/persistence/snapshot"
	"gridloot/internal/store"
)

// Offline operator tooling for a gridloot data directory: inspect the
// document store, export and import campaign snapshots, and tail the
// mutation log. The server must not be running against the same db for
// the offline subcommands.
func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "get":
			getCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		case "mutations":
			mutationsCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	prefix := fs.String("prefix", "campaigns", "document path prefix")
	_ = fs.Parse(args)

	st := openStore(*dataDir)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	docs, err := st.List(ctx, *prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, d := range docs {
		fmt.Printf("%s rev=%d fields=%d\n", d.Path, d.Rev, len(d.Doc))
	}
}

func getCmd(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: admin get [-data DIR] <path>")
		os.Exit(2)
	}
	path := strings.TrimSpace(fs.Arg(0))

	st := openStore(*dataDir)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doc, rev, err := st.Get(ctx, path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal:", err)
		os.Exit(1)
	}
	fmt.Printf("rev=%d\n%s\n", rev, out)
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	campaign := fs.String("campaign", "", "campaign id (required)")
	outPath := fs.String("out", "", "output snapshot path (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*campaign) == "" {
		fmt.Fprintln(os.Stderr, "missing -campaign")
		os.Exit(2)
	}

	st := openStore(*dataDir)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := snapshot.Capture(ctx, st, *campaign)
	if err != nil {
		fmt.Fprintln(os.Stderr, "capture:", err)
		os.Exit(1)
	}
	if len(snap.Documents) == 0 {
		fmt.Fprintln(os.Stderr, "no documents for campaign", *campaign)
		os.Exit(2)
	}

	path := strings.TrimSpace(*outPath)
	if path == "" {
		stamp := snap.Header.TakenAt.UTC().Format("20060102T150405Z")
		path = filepath.Join(*dataDir, "snapshots", *campaign+"-"+stamp+".snap.zst")
	}
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		fmt.Fprintln(os.Stderr, "write snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("export ok: campaign=%s docs=%d rev=%d out=%s\n", *campaign, len(snap.Documents), snap.Header.Rev, path)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: admin import [-data DIR] <snapshot.snap.zst>")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}

	st := openStore(*dataDir)
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := snapshot.Restore(ctx, st, snap); err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	fmt.Printf("import ok: campaign=%s docs=%d rev=%d\n", snap.Header.CampaignID, len(snap.Documents), snap.Header.Rev)
}

func openStore(dataDir string) *store.SQLite {
	st, err := store.OpenSQLite(filepath.Join(dataDir, "documents.db"), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return st
}
