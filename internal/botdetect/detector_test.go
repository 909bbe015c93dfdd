package botdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func TestDetectKnownCrawler(t *testing.T) {
	d := NewDetector(Config{BlockBots: true})

	r := d.Detect("Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "1.2.3.4")

	assert.True(t, r.IsBot)
	assert.Equal(t, "googlebot", r.BotName)
	assert.Equal(t, "search", r.BotType)
	assert.Equal(t, MethodUserAgentSignature, r.DetectionMethod)
	assert.True(t, r.Allowed)
	assert.False(t, d.ShouldBlock(r))
}

func TestDetectHTTPClient(t *testing.T) {
	d := NewDetector(Config{BlockBots: true})

	r := d.Detect("curl/8.4.0", "1.2.3.4")

	assert.True(t, r.IsBot)
	assert.Equal(t, "curl", r.BotName)
	assert.Equal(t, "http-client", r.BotType)
	assert.False(t, r.Allowed)
	assert.True(t, d.ShouldBlock(r))
}

func TestDetectBrowserNotBot(t *testing.T) {
	d := NewDetector(Config{BlockBots: true})

	r := d.Detect(browserUA, "1.2.3.4")

	assert.False(t, r.IsBot)
	assert.False(t, d.ShouldBlock(r))
}

func TestDetectMissingUserAgent(t *testing.T) {
	d := NewDetector(Config{BlockBots: true})

	r := d.Detect("", "1.2.3.4")

	assert.True(t, r.IsBot)
	assert.Equal(t, MethodMissingUserAgent, r.DetectionMethod)
	assert.True(t, d.ShouldBlock(r))
}

func TestAllowedBotsOverride(t *testing.T) {
	d := NewDetector(Config{
		BlockBots:   true,
		AllowedBots: []string{"Curl"},
	})

	r := d.Detect("curl/8.4.0", "1.2.3.4")

	assert.True(t, r.IsBot)
	assert.True(t, r.Allowed)
	assert.False(t, d.ShouldBlock(r))
}

func TestCustomSignaturesPrecedeBuiltins(t *testing.T) {
	d := NewDetector(Config{
		CustomSignatures: []Signature{
			{Name: "internal-probe", Type: "monitoring", Pattern: "curl/", Confidence: 1.0, AllowedByDefault: true},
		},
	})

	r := d.Detect("curl/8.4.0", "1.2.3.4")

	assert.Equal(t, "internal-probe", r.BotName)
	assert.True(t, r.Allowed)
}

func TestBlockBotsDisabled(t *testing.T) {
	d := NewDetector(Config{BlockBots: false})

	r := d.Detect("curl/8.4.0", "1.2.3.4")

	assert.True(t, r.IsBot)
	assert.False(t, d.ShouldBlock(r))
}

func TestRatePatternClassifiesFlood(t *testing.T) {
	d := NewDetector(Config{
		BlockBots: true,
		RatePattern: RatePatternConfig{
			Enabled:           true,
			RequestsPerSecond: 1,
			Burst:             3,
		},
	})

	var last Result
	for i := 0; i < 10; i++ {
		last = d.Detect(browserUA, "9.9.9.9")
	}

	assert.True(t, last.IsBot)
	assert.Equal(t, MethodRatePattern, last.DetectionMethod)
	assert.True(t, d.ShouldBlock(last))

	// A different client is unaffected.
	other := d.Detect(browserUA, "8.8.8.8")
	assert.False(t, other.IsBot)
}

func TestRatePatternDisabled(t *testing.T) {
	d := NewDetector(Config{BlockBots: true})

	for i := 0; i < 100; i++ {
		r := d.Detect(browserUA, "9.9.9.9")
		assert.False(t, r.IsBot)
	}
}
