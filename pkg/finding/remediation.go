package finding

// RemediationFor returns fixed remediation guidance for a category.
// The text is attached verbatim to auto-created findings.
func RemediationFor(c Category) string {
	switch c {
	case PromptInjection:
		return `To mitigate prompt injection:
1. Separate system instructions from user input with strict message roles
2. Treat all user-supplied text as data, never as instructions
3. Validate and sanitize input before it reaches the model context
4. Constrain the model with an allowlist of permitted behaviors
5. Monitor responses for instruction-override markers`
	case DataExtraction:
		return `To mitigate data extraction:
1. Never embed secrets or credentials in the system prompt
2. Strip sensitive data from retrieval context before inference
3. Add output filters for secret-shaped strings (API keys, tokens)
4. Refuse verbatim disclosure of system instructions
5. Rotate any credential the model has ever had access to`
	case GuardrailBypass:
		return `To mitigate guardrail bypass:
1. Enforce content policy in a post-processing layer, not only in the prompt
2. Evaluate jailbreak resistance with adversarial test suites on every release
3. Reject role-play framings that relabel forbidden content as fiction
4. Apply safety classifiers to model output before delivery
5. Rate-limit and flag repeated bypass attempts per client`
	case IntegrationVuln:
		return `To mitigate integration vulnerabilities:
1. Require explicit confirmation before the model triggers tool calls
2. Escape or sandbox model output before rendering or execution
3. Apply least privilege to every downstream system the model can reach
4. Validate tool arguments against strict schemas
5. Log and review all model-initiated side effects`
	default:
		return `Review the attack evidence and apply defense in depth:
input validation, output filtering, and least-privilege integration.`
	}
}
