package botdetect

// Signature is one User-Agent substring signature. Pattern is matched
// case-insensitively against the User-Agent.
type Signature struct {
	Name       string
	Type       string
	Pattern    string
	Confidence float64

	// AllowedByDefault marks well-known crawlers that pass even when
	// bot blocking is on.
	AllowedByDefault bool
}

// builtinSignatures is the default signature set, from well-known
// crawlers to generic automation markers. Order matters: the first
// matching signature wins, so specific names come before generic ones.
var builtinSignatures = []Signature{
	{Name: "googlebot", Type: "search", Pattern: "googlebot", Confidence: 0.99, AllowedByDefault: true},
	{Name: "bingbot", Type: "search", Pattern: "bingbot", Confidence: 0.99, AllowedByDefault: true},
	{Name: "duckduckbot", Type: "search", Pattern: "duckduckbot", Confidence: 0.99, AllowedByDefault: true},
	{Name: "yandexbot", Type: "search", Pattern: "yandexbot", Confidence: 0.99, AllowedByDefault: true},
	{Name: "baiduspider", Type: "search", Pattern: "baiduspider", Confidence: 0.99, AllowedByDefault: true},
	{Name: "slurp", Type: "search", Pattern: "slurp", Confidence: 0.95, AllowedByDefault: true},

	{Name: "facebookexternalhit", Type: "social", Pattern: "facebookexternalhit", Confidence: 0.95, AllowedByDefault: true},
	{Name: "twitterbot", Type: "social", Pattern: "twitterbot", Confidence: 0.95, AllowedByDefault: true},
	{Name: "linkedinbot", Type: "social", Pattern: "linkedinbot", Confidence: 0.95, AllowedByDefault: true},

	{Name: "ahrefsbot", Type: "scraper", Pattern: "ahrefsbot", Confidence: 0.95},
	{Name: "semrushbot", Type: "scraper", Pattern: "semrushbot", Confidence: 0.95},
	{Name: "mj12bot", Type: "scraper", Pattern: "mj12bot", Confidence: 0.95},

	{Name: "curl", Type: "http-client", Pattern: "curl/", Confidence: 0.9},
	{Name: "wget", Type: "http-client", Pattern: "wget/", Confidence: 0.9},
	{Name: "python-requests", Type: "http-client", Pattern: "python-requests", Confidence: 0.9},
	{Name: "python-urllib", Type: "http-client", Pattern: "python-urllib", Confidence: 0.9},
	{Name: "go-http-client", Type: "http-client", Pattern: "go-http-client", Confidence: 0.9},
	{Name: "java-http-client", Type: "http-client", Pattern: "java/", Confidence: 0.85},
	{Name: "okhttp", Type: "http-client", Pattern: "okhttp", Confidence: 0.85},

	{Name: "headless-chrome", Type: "headless", Pattern: "headlesschrome", Confidence: 0.9},
	{Name: "phantomjs", Type: "headless", Pattern: "phantomjs", Confidence: 0.9},
	{Name: "selenium", Type: "headless", Pattern: "selenium", Confidence: 0.9},

	{Name: "generic-bot", Type: "generic", Pattern: "bot", Confidence: 0.7},
	{Name: "generic-spider", Type: "generic", Pattern: "spider", Confidence: 0.7},
	{Name: "generic-crawler", Type: "generic", Pattern: "crawler", Confidence: 0.7},
	{Name: "generic-scraper", Type: "generic", Pattern: "scraper", Confidence: 0.7},
}
