package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shpitdev/dossier-outreach/internal/mocksheets"
)

func main() {
	addr := defaultString("MOCK_SHEETS_ADDR", ":8080")
	spreadsheetID := defaultString("MOCK_SHEETS_SPREADSHEET_ID", "local-sheet")
	worksheet := defaultString("MOCK_SHEETS_WORKSHEET", "Sheet1")
	seedCSV := defaultString("MOCK_SHEETS_SEED_CSV", "")
	snapshotDir := defaultString("MOCK_SHEETS_SNAPSHOT_DIR", "")

	fs := flag.NewFlagSet("mock-sheets", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&spreadsheetID, "spreadsheet", spreadsheetID, "Spreadsheet id to serve")
	fs.StringVar(&worksheet, "worksheet", worksheet, "Worksheet title")
	fs.StringVar(&seedCSV, "seed", seedCSV, "CSV file used as the initial worksheet contents")
	fs.StringVar(&snapshotDir, "snapshot-dir", snapshotDir, "Directory receiving a CSV snapshot after every write")
	_ = fs.Parse(os.Args[1:])

	srv := mocksheets.New()
	if seedCSV != "" {
		if err := srv.LoadCSV(spreadsheetID, worksheet, seedCSV); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
			os.Exit(1)
		}
	} else {
		srv.SetRows(spreadsheetID, worksheet, nil)
	}
	if snapshotDir != "" {
		srv.PersistTo(snapshotDir)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-sheets listening on %s (spreadsheet=%s worksheet=%s)\n", addr, spreadsheetID, worksheet)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
