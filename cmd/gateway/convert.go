package main

import (
	"strings"
	"time"

	"github.com/vyrodovalexey/policygw/internal/auth/apikey"
	"github.com/vyrodovalexey/policygw/internal/botdetect"
	"github.com/vyrodovalexey/policygw/internal/cache"
	"github.com/vyrodovalexey/policygw/internal/config"
	"github.com/vyrodovalexey/policygw/internal/iprestrict"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/ratelimit"
	"github.com/vyrodovalexey/policygw/internal/validation"
)

// Config structs stay in the config package; each feature package owns
// its domain types. The translation lives here so the packages do not
// import each other.

func buildRateLimitRules(configs []config.RateLimitRuleConfig) *ratelimit.RuleSet {
	rules := make([]*ratelimit.Rule, 0, len(configs))
	for _, rc := range configs {
		rules = append(rules, &ratelimit.Rule{
			ID:             rc.ID,
			PathPattern:    rc.PathPattern,
			Methods:        rc.Methods,
			Enabled:        rc.Enabled,
			Priority:       rc.Priority,
			IdentifierType: ratelimit.IdentifierType(rc.IdentifierType),
			Window:         time.Duration(rc.WindowSeconds) * time.Second,
			MaxRequests:    int64(rc.MaxRequests),
		})
	}
	return ratelimit.NewRuleSet(rules)
}

func buildValidationSpecs(configs []config.ValidationRuleConfig) []validation.RuleSpec {
	specs := make([]validation.RuleSpec, 0, len(configs))
	for _, rc := range configs {
		specs = append(specs, validation.RuleSpec{
			ID:          rc.ID,
			PathPattern: rc.PathPattern,
			Methods:     rc.Methods,
			Enabled:     rc.Enabled,
			Priority:    rc.Priority,
			Expression:  rc.Expression,
			Message:     rc.Message,
		})
	}
	return specs
}

func buildAPIKeys(configs []config.APIKeyEntryConfig) []*apikey.Key {
	keys := make([]*apikey.Key, 0, len(configs))
	for _, kc := range configs {
		var key *apikey.Key
		if kc.Hash != "" {
			key = apikey.NewHashedKey(kc.ID, kc.Name, kc.Hash)
		} else {
			key = apikey.NewKey(kc.ID, kc.Name, kc.Key)
		}
		key.AllowedPaths = kc.AllowedPaths
		key.AllowedIPs = kc.AllowedIPs
		key.RateLimitPerSecond = kc.RateLimitPerSecond
		key.Enabled = kc.Enabled
		key.ExpiresAt = kc.ExpiresAt
		keys = append(keys, key)
	}
	return keys
}

func buildIPEntries(configs []config.IPEntryConfig, logger observability.Logger) []iprestrict.Entry {
	entries := make([]iprestrict.Entry, 0, len(configs))
	for _, ec := range configs {
		entry, err := iprestrict.NewEntry(ec.CIDR, ec.ExpiresAt)
		if err != nil {
			// Validate catches these at load time; a reload with a bad
			// entry should not drop the whole list.
			logger.Warn("skipping invalid IP entry",
				observability.String("cidr", ec.CIDR),
				observability.Error(err),
			)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func buildCacheRules(configs []config.CacheRuleConfig) *cache.RuleSet {
	rules := make([]*cache.Rule, 0, len(configs))
	for _, rc := range configs {
		rules = append(rules, &cache.Rule{
			ID:                rc.ID,
			PathPattern:       rc.PathPattern,
			Methods:           rc.Methods,
			Enabled:           rc.Enabled,
			Priority:          rc.Priority,
			TTL:               time.Duration(rc.TTLSeconds) * time.Second,
			VaryByQueryParams: rc.VaryByQueryParams,
			VaryByHeaders:     rc.VaryByHeaders,
			VaryHeaders:       rc.VaryHeaders,
		})
	}
	return cache.NewRuleSet(rules)
}

func buildBotConfig(bc config.BotDetectionConfig) botdetect.Config {
	signatures := make([]botdetect.Signature, 0, len(bc.CustomSignatures))
	for _, sc := range bc.CustomSignatures {
		signatures = append(signatures, botdetect.Signature{
			Name:       sc.Name,
			Type:       sc.Type,
			Pattern:    strings.ToLower(sc.Pattern),
			Confidence: 0.9,
		})
	}

	return botdetect.Config{
		BlockBots:        bc.BlockBots,
		AllowedBots:      bc.AllowedBots,
		CustomSignatures: signatures,
		RatePattern: botdetect.RatePatternConfig{
			Enabled:           bc.RatePattern.Enabled,
			RequestsPerSecond: bc.RatePattern.RequestsPerSecond,
			Burst:             bc.RatePattern.Burst,
		},
	}
}
