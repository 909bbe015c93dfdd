package transform

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplySetAndRemove(t *testing.T) {
	tr := NewTransformer(Config{
		SetHeaders:    map[string]string{"X-Gateway": "policygw"},
		RemoveHeaders: []string{"X-Internal-Debug"},
	})

	headers := http.Header{}
	headers.Set("X-Internal-Debug", "trace")
	headers.Set("Content-Type", "application/json")

	tr.Apply(headers)

	assert.Equal(t, "policygw", headers.Get("X-Gateway"))
	assert.Empty(t, headers.Get("X-Internal-Debug"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
}

func TestApplyScrubServerHeader(t *testing.T) {
	tr := NewTransformer(Config{ScrubServerHeader: true})

	headers := http.Header{}
	headers.Set("Server", "nginx/1.25")

	tr.Apply(headers)

	assert.Empty(t, headers.Get("Server"))
}

func TestApplySetOverridesExisting(t *testing.T) {
	tr := NewTransformer(Config{
		SetHeaders: map[string]string{"Cache-Control": "no-store"},
	})

	headers := http.Header{}
	headers.Set("Cache-Control", "public, max-age=60")

	tr.Apply(headers)

	assert.Equal(t, "no-store", headers.Get("Cache-Control"))
}

func TestApplyEmptyConfigNoop(t *testing.T) {
	tr := NewTransformer(Config{})

	headers := http.Header{}
	headers.Set("Server", "nginx")

	tr.Apply(headers)

	assert.Equal(t, "nginx", headers.Get("Server"))
}
