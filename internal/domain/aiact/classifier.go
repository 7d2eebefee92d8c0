package aiact

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// RiskTier is the EU AI Act style risk classification of a system.
type RiskTier string

const (
	TierProhibited     RiskTier = "prohibited"
	TierHighRisk       RiskTier = "high_risk"
	TierLimitedRisk    RiskTier = "limited_risk"
	TierMinimalRisk    RiskTier = "minimal_risk"
	TierGeneralPurpose RiskTier = "general_purpose"
)

// Tiers lists every tier from most to least restrictive.
func Tiers() []RiskTier {
	return []RiskTier{TierProhibited, TierHighRisk, TierGeneralPurpose, TierLimitedRisk, TierMinimalRisk}
}

// Valid reports whether t is a known tier.
func (t RiskTier) Valid() bool {
	return slices.Contains(Tiers(), t)
}

// GPAIParameterThreshold is the parameter count above which a model is
// treated as general purpose.
const GPAIParameterThreshold = 1_000_000_000

var prohibitedKeywords = []string{
	"social scoring", "social credit", "subliminal", "manipulation", "manipulative",
	"exploit vulnerabilities",
	"real time biometric identification in public", "real time biometric identification in publicly accessible",
	"remote biometric identification in public", "untargeted facial scraping",
}

var generalPurposeKeywords = []string{
	"general purpose", "foundation model", "gpai",
}

var highRiskKeywords = []string{
	"hiring", "recruitment", "recruiting", "employment", "worker management",
	"credit", "creditworthiness", "loan", "lending",
	"medical", "medical device", "diagnosis", "healthcare",
	"law enforcement", "policing", "police",
	"biometric", "biometrics",
	"education", "exam", "admissions", "student assessment",
	"critical infrastructure", "power grid", "water supply", "traffic management",
	"migration", "asylum", "border control", "immigration",
	"justice", "judicial", "court", "democratic", "election", "elections", "voting",
	"essential services", "social benefits", "insurance",
}

var limitedRiskKeywords = []string{
	"chatbot", "chat bot", "conversational", "virtual assistant",
	"deepfake", "deep fake", "generated content", "content generation",
	"synthetic media", "image generation", "text generation", "generative",
	"emotion recognition",
}

var highImpactLevels = []string{"high", "critical"}

var automatedLevels = []string{"fully automated", "mostly automated", "fully autonomous", "autonomous"}

// Classification is a tier with the rule that produced it.
type Classification struct {
	Tier    RiskTier `json:"tier"`
	Reason  string   `json:"reason"`
	Matched []string `json:"matched,omitempty"`
}

// Classify returns exactly one tier for any profile. Empty input is minimal risk.
func Classify(p AISystemProfile) RiskTier {
	return Explain(p).Tier
}

// Explain classifies p and reports which rule matched. Rules are evaluated in
// order and the first match wins.
func Explain(p AISystemProfile) Classification {
	text := normalize(strings.Join([]string{p.UseCase, p.Purpose, p.Domain, p.DeploymentContext}, " "))

	if m := matchAll(text, prohibitedKeywords); len(m) > 0 {
		return Classification{Tier: TierProhibited, Reason: "use case describes a prohibited practice", Matched: m}
	}
	if p.ParameterCount > GPAIParameterThreshold {
		return Classification{Tier: TierGeneralPurpose, Reason: fmt.Sprintf("parameter count %d exceeds %d", p.ParameterCount, int64(GPAIParameterThreshold))}
	}
	if m := matchAll(text, generalPurposeKeywords); len(m) > 0 {
		return Classification{Tier: TierGeneralPurpose, Reason: "described as a general purpose model", Matched: m}
	}
	if m := matchAll(text, highRiskKeywords); len(m) > 0 {
		return Classification{Tier: TierHighRisk, Reason: "use case falls in a high-risk domain", Matched: m}
	}
	if impact := normalize(p.DecisionImpact); containsPhrase(impact, highImpactLevels...) {
		return Classification{Tier: TierHighRisk, Reason: "decision impact is " + impact}
	}
	if auto := normalize(p.AutomationLevel); containsPhrase(auto, automatedLevels...) && !p.HumanOversight {
		return Classification{Tier: TierHighRisk, Reason: "automated decisions without human oversight"}
	}
	if m := matchAll(text, limitedRiskKeywords); len(m) > 0 {
		return Classification{Tier: TierLimitedRisk, Reason: "system interacts with people or generates content", Matched: m}
	}
	return Classification{Tier: TierMinimalRisk, Reason: "no risk indicators matched"}
}

// normalize lower-cases s and turns every non-alphanumeric run into one space.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase matches whole words only: "credit" does not match "accredited".
func containsPhrase(text string, phrases ...string) bool {
	padded := " " + text + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func matchAll(text string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if containsPhrase(text, p) {
			out = append(out, p)
		}
	}
	return out
}
