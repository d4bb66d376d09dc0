package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskFieldRedactsUnlistedKeys(t *testing.T) {
	attr := MaskField("webhook_secret", "sekrit")
	require.Equal(t, RedactedValue, attr.Value.String())
}

func TestMaskFieldPassesAllowlistedKeys(t *testing.T) {
	attr := MaskField("doc_id", "doc-1")
	require.Equal(t, "doc-1", attr.Value.String())
}

func TestMaskFieldPassesEmptyValues(t *testing.T) {
	attr := MaskField("webhook_secret", "")
	require.Equal(t, "", attr.Value.String())
}

func TestSetupReturnsNonNilLogger(t *testing.T) {
	logger := Setup("dwagent", "test", nil)
	require.NotNil(t, logger)
}
