package fsjournal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/pickaxe-agent/journal"
)

type stageEvt struct {
	Request string
	State   string
}

func readEvents(t *testing.T, path string) []journal.Event {
	t.Helper()

	fi, err := os.Open(path)
	require.NoError(t, err)
	defer fi.Close() //nolint:errcheck

	var out []journal.Event
	sc := bufio.NewScanner(fi)
	for sc.Scan() {
		var evt journal.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &evt))
		out = append(out, evt)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestRecordsEnabledEvents(t *testing.T) {
	dir := t.TempDir()
	mc := clock.NewMock()

	disabled, err := journal.ParseDisabledEvents("deals:discovered")
	require.NoError(t, err)

	j, err := OpenFSJournal(dir, disabled, WithClock(mc))
	require.NoError(t, err)

	stage := j.RegisterEventType("deals", "stage")
	discovered := j.RegisterEventType("deals", "discovered")
	require.True(t, stage.Enabled())
	require.False(t, discovered.Enabled())

	j.RecordEvent(stage, func() interface{} {
		return stageEvt{Request: "r1", State: "ack"}
	})
	j.RecordEvent(discovered, func() interface{} {
		panic("supplier of a disabled event must not run")
	})
	j.RecordEvent(stage, func() interface{} {
		return stageEvt{Request: "r1", State: "queuing"}
	})
	require.NoError(t, j.Close())

	evts := readEvents(t, filepath.Join(dir, "journal", currentFile))
	require.Len(t, evts, 2)
	require.Equal(t, "deals", evts[0].System)
	require.Equal(t, "stage", evts[0].Event)
	require.Equal(t, map[string]interface{}{"Request": "r1", "State": "queuing"}, evts[1].Data)
}

func TestRollsWhenFull(t *testing.T) {
	dir := t.TempDir()
	mc := clock.NewMock()

	j, err := OpenFSJournal(dir, nil, WithClock(mc), WithSizeLimit(1))
	require.NoError(t, err)
	stage := j.RegisterEventType("deals", "stage")

	for i := 0; i < 3; i++ {
		mc.Add(time.Minute)
		j.RecordEvent(stage, func() interface{} { return i })
		require.Eventually(t, func() bool {
			files, _ := os.ReadDir(filepath.Join(dir, "journal"))
			return len(files) == i+2
		}, time.Second, 5*time.Millisecond)
	}
	require.NoError(t, j.Close())
}

func TestParseDisabledEvents(t *testing.T) {
	evts, err := journal.ParseDisabledEvents(" deals:stage , worker:job ")
	require.NoError(t, err)
	require.Len(t, evts, 2)
	require.Equal(t, "worker:job", evts[1].String())

	evts, err = journal.ParseDisabledEvents("")
	require.NoError(t, err)
	require.Empty(t, evts)

	_, err = journal.ParseDisabledEvents("nocolon")
	require.Error(t, err)
}
