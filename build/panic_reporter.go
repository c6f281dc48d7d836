package build

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/icza/backscanner"
	logging "github.com/ipfs/go-log/v2"
)

var (
	panicLog           = logging.Logger("panic-reporter")
	defaultJournalTail = 500
)

// PanicReportingPath is the name of the subdir created within the repoPath
// path provided to GeneratePanicReport
var PanicReportingPath = "panic-reports"

// PanicReportJournalTail is the number of lines captured from the end of
// the agent journal to be included in the panic report.
var PanicReportJournalTail = defaultJournalTail

// journalFile is the live journal file written by fsjournal under
// <repoPath>/journal.
const journalFile = "pickaxe-journal.ndjson"

// GeneratePanicReport produces a timestamped dump of the agent state for
// inspection and debugging purposes. `persistPath` is where the reports are
// saved; when empty they go to <repoPath>/panic-reports. `repoPath` is the
// directory holding the journal. `label` is an optional string to include
// next to the report timestamp.
func GeneratePanicReport(persistPath, repoPath, label string) string {
	// make sure we always dump the latest logs on the way out
	// especially since we're probably panicking
	defer panicLog.Sync() //nolint:errcheck

	if persistPath == "" && repoPath == "" {
		panicLog.Warn("missing persist and repo paths, aborting panic report creation")
		return ""
	}

	reportPath := filepath.Join(repoPath, PanicReportingPath, generateReportName(label))
	if persistPath != "" {
		reportPath = filepath.Join(persistPath, generateReportName(label))
	}
	panicLog.Warnf("generating panic report at %s", reportPath)

	tl := os.Getenv("PICKAXE_PANIC_JOURNAL_LOOKBACK")
	if tl != "" && PanicReportJournalTail == defaultJournalTail {
		i, err := strconv.Atoi(tl)
		if err == nil {
			PanicReportJournalTail = i
		}
	}

	err := os.MkdirAll(reportPath, 0755)
	if err != nil {
		panicLog.Error(err.Error())
		return ""
	}

	writeAppVersion(filepath.Join(reportPath, "version"))
	writeStackTrace(filepath.Join(reportPath, "stacktrace.dump"))
	writeProfile("goroutines", filepath.Join(reportPath, "goroutines.pprof.gz"))
	writeProfile("heap", filepath.Join(reportPath, "heap.pprof.gz"))
	writeJournalTail(PanicReportJournalTail, repoPath, filepath.Join(reportPath, "journal.ndjson"))

	return reportPath
}

func writeAppVersion(file string) {
	f, err := os.Create(file)
	if err != nil {
		panicLog.Error(err.Error())
		return
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write([]byte(UserVersion() + "\n")); err != nil {
		panicLog.Error(err.Error())
	}
}

func writeStackTrace(file string) {
	f, err := os.Create(file)
	if err != nil {
		panicLog.Error(err.Error())
		return
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(debug.Stack()); err != nil {
		panicLog.Error(err.Error())
	}
}

func writeProfile(profileType string, file string) {
	p := pprof.Lookup(profileType)
	if p == nil {
		panicLog.Warnf("%s profile not available", profileType)
		return
	}
	f, err := os.Create(file)
	if err != nil {
		panicLog.Error(err.Error())
		return
	}
	defer f.Close() //nolint:errcheck

	if err := p.WriteTo(f, 0); err != nil {
		panicLog.Error(err.Error())
	}
}

// writeJournalTail copies the last tailLen journal entries, oldest first.
func writeJournalTail(tailLen int, repoPath, file string) {
	if repoPath == "" {
		panicLog.Warn("repo path is empty, aborting copy of journal log")
		return
	}

	j, err := os.Open(filepath.Join(repoPath, "journal", journalFile))
	if err != nil {
		panicLog.Warnf("failed opening journal: %s", err.Error())
		return
	}
	defer j.Close() //nolint:errcheck

	js, err := j.Stat()
	if err != nil {
		panicLog.Error(err.Error())
		return
	}

	var tail [][]byte
	jScan := backscanner.New(j, int(js.Size()))
	for len(tail) < tailLen {
		line, _, err := jScan.LineBytes()
		if err != nil {
			if err != io.EOF {
				panicLog.Error(err.Error())
			}
			break
		}
		if len(line) == 0 {
			continue
		}
		tail = append(tail, append([]byte(nil), line...))
	}

	f, err := os.Create(file)
	if err != nil {
		panicLog.Error(err.Error())
		return
	}
	defer f.Close() //nolint:errcheck

	for i := len(tail) - 1; i >= 0; i-- {
		if _, err := f.Write(append(tail[i], '\n')); err != nil {
			panicLog.Error(err.Error())
			return
		}
	}
}

func generateReportName(label string) string {
	label = strings.ReplaceAll(label, " ", "")
	return fmt.Sprintf("report_%s_%s", label, time.Now().Format("2006-01-02T150405"))
}
