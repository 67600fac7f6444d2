package finding

// Category classifies what an attack payload tries to achieve against the
// target AI system. The set is closed; detection rules and remediation
// guidance switch over it exhaustively.
type Category string

const (
	// PromptInjection covers attempts to override the target's instructions
	// with attacker-controlled ones.
	PromptInjection Category = "prompt_injection"

	// DataExtraction covers attempts to exfiltrate system prompts, training
	// data or secrets embedded in the target's context.
	DataExtraction Category = "data_extraction"

	// GuardrailBypass covers jailbreaks that coax the target into producing
	// content its policy forbids.
	GuardrailBypass Category = "guardrail_bypass"

	// IntegrationVuln covers attacks on the plumbing around the model:
	// tool invocation, template injection, markup smuggling.
	IntegrationVuln Category = "integration_vuln"
)

// AllCategories returns every known category in a stable order.
func AllCategories() []Category {
	return []Category{PromptInjection, DataExtraction, GuardrailBypass, IntegrationVuln}
}

// IsValid reports whether c is a recognized category.
func (c Category) IsValid() bool {
	switch c {
	case PromptInjection, DataExtraction, GuardrailBypass, IntegrationVuln:
		return true
	}
	return false
}

// String returns the category as a string.
func (c Category) String() string {
	return string(c)
}
