package agentlog

import (
	"testing"

	logging "github.com/ipfs/go-log/v2"
	"github.com/stretchr/testify/require"
)

func TestSetSubsystemLevels(t *testing.T) {
	_ = logging.Logger("deals")

	require.NoError(t, SetSubsystemLevels(map[string]string{"deals": "debug"}))
	require.Error(t, SetSubsystemLevels(map[string]string{"deals": "chatty"}))
}
