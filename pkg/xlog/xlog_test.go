package xlog_test

import (
	"path/filepath"
	"testing"

	"ccspot/pkg/xlog"

	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	xlog.Init("test", filepath.Join(t.TempDir(), "xlog-test.log"), nil)
	logger := xlog.GetLogger()
	require.NotNil(t, logger)

	logger.SetLevel("TRACE")
	require.Equal(t, xlog.TRACE, logger.GetLevel())

	logger.Trace("this is trace")
	logger.Debug("this is debug")
	logger.Info("this is info")
	logger.Named("wallet").Warningf("this is %s", "warning")
	logger.Error("this is error")

	logger.SetLevel("nope")
	require.Equal(t, xlog.TRACE, logger.GetLevel())

	logger.SetLevel("w")
	require.Equal(t, xlog.WARNING, logger.GetLevel())
	logger.SetLevel("INFO")
}

func TestWriter(t *testing.T) {
	n, err := xlog.GetLogger().Write([]byte("from std log\n"))
	require.Nil(t, err)
	require.Equal(t, 13, n)
}
