package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig("Store", Config{AppEnv: "development", Out: &buf, NoColor: true})

	log.LogInfof("wrote %d records", 3)

	assert.Contains(t, buf.String(), "[Store] wrote 3 records")
	assert.Contains(t, buf.String(), "[INFO]")
}

func TestLevelByEnvironment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig("Pipeline", Config{AppEnv: "production", Out: &buf, NoColor: true})

	log.LogDebug("hidden")
	assert.Empty(t, buf.String())

	log.LogWarn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithScope(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithConfig("Discover", Config{AppEnv: "development", Out: &buf, NoColor: true})

	log.With("single-oils").LogInfo("page 0")

	assert.Contains(t, buf.String(), "scope=single-oils")
}
