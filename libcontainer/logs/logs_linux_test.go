package logs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestConfigureChildSetsJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	ConfigureChild(&buf)
	logrus.Info("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)

	logrus.SetOutput(nil)
}

func TestForwardLogsDecodesKnownLevel(t *testing.T) {
	var out bytes.Buffer
	logrus.SetOutput(&out)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	defer logrus.SetOutput(nil)

	r := strings.NewReader(`{"level":"warning","msg":"disk low"}` + "\n")
	ForwardLogs(r)

	require.Contains(t, out.String(), "disk low")
	require.Contains(t, out.String(), "level=warning")
}

func TestForwardLogsUnknownLevelDefaultsToInfo(t *testing.T) {
	var out bytes.Buffer
	logrus.SetOutput(&out)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	defer logrus.SetOutput(nil)

	r := strings.NewReader(`{"level":"bogus","msg":"fallback"}` + "\n")
	ForwardLogs(r)

	require.Contains(t, out.String(), "level=info")
	require.Contains(t, out.String(), "fallback")
}
