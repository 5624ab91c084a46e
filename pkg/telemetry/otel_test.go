package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoint(t *testing.T) {
	host, path, insecure := parseEndpoint("https://otel.example.com/custom/traces")
	assert.Equal(t, "otel.example.com", host)
	assert.Equal(t, "/custom/traces", path)
	assert.False(t, insecure)

	host, path, insecure = parseEndpoint("http://collector:4318")
	assert.Equal(t, "collector:4318", host)
	assert.Equal(t, "/v1/traces", path)
	assert.True(t, insecure)

	host, _, insecure = parseEndpoint("collector:4318")
	assert.Equal(t, "collector:4318", host)
	assert.True(t, insecure)

	host, _, _ = parseEndpoint("")
	assert.Equal(t, "localhost:4318", host)
}
