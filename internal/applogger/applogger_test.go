package applogger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutputWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("debug", &buf)
	logger.WithField("transactionId", "tx-1").Debug("confirmed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "confirmed", entry["message"])
	assert.Equal(t, "tx-1", entry["transactionId"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewWithOutputUnknownLevel(t *testing.T) {
	logger := NewWithOutput("chatty", &bytes.Buffer{})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
