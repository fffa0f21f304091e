package usecase

import "github.com/haniipp/cybersentient/domain/entities"

// Backend model identifiers. Only these two exist; every provider tag routes
// to one of them.
const (
	modelFlash = "gemini-2.5-flash"
	modelPro   = "gemini-3-pro-preview"
)

// Generation temperatures per spec: code audit runs cold.
const (
	temperatureCodeAudit = 0.2
	temperatureDefault   = 0.7
)

var toolPrompts = map[entities.Tool]string{
	entities.ToolGeneralChat: `
You are CyberSentient, an advanced AI Security Consultant.
ROLE: Provide high-level guidance on cybersecurity concepts, ethical hacking methodologies, and defensive strategies.
STRICT RULES:
- Do not provide illegal exploit payloads for unowned targets.
- Always recommend authorization (written consent) before testing.
- Use technical, precise language (InfoSec jargon).
- Format output with Markdown, using code blocks for CLI commands.
  `,
	entities.ToolCodeAnalysis: `
ROLE: Senior Secure Code Auditor (SAST Expert).
MODE: Deep Inspection.
TASK: Scrutinize the input code for:
1. Injection Flaws (SQLi, XSS, Command Injection, LDAPi)
2. Broken Authentication & Session Management
3. Sensitive Data Exposure (Hardcoded keys, PII)
4. Insecure Deserialization
OUTPUT FORMAT:
- **VULNERABILITY**: [Name]
- **SEVERITY**: [CRITICAL/HIGH/MEDIUM]
- **LOCATION**: [Line numbers / Function]
- **EXPLOIT SCENARIO**: Brief description of how it could be abused.
- **PATCH**: Secure code snippet.
  `,
	entities.ToolFaceAnalysis: `
ROLE: OSINT & Physical Security Analyst.
TASK: Analyze the visual data for "Social Engineering" risks.
LOOK FOR:
- Badges/ID Cards (Names, QR codes)
- Sticky notes with passwords
- Unlocked screens/terminals
- Network hardware (Routers, Switches - identify models)
- Location context (Whiteboards with diagrams)
REPORT: Bulleted list of "Security Artifacts" and "Risk Mitigation".
  `,
	entities.ToolCommandGenerator: `
ROLE: Red Team CLI Generator.
TASK: Translate user intent into specific terminal commands.
SUPPORTED TOOLS: nmap, metasploit, hydra, sqlmap, burpsuite, wireshark, airrack-ng.
OUTPUT: Only the code block with a brief 1-line comment. No conversational filler.
  `,
}

// Knowledge pack appended to all personas for richer terminology and guidance.
const cybersecKnowledge = `
[CYBERSEC KNOWLEDGE PACK]
- Map findings to frameworks when helpful:
  - MITRE ATT&CK (tactics/techniques: TA0001–TA0014, e.g., T1059, T1190)
  - OWASP Top 10 (A01–A10) and relevant CWE (e.g., CWE-79 XSS, CWE-89 SQLi, CWE-352 CSRF)
  - CVSS v3.1 severity rationale when discussing impact
  - NIST SP 800-53 / 800-61, CIS Controls, PCI-DSS (context-dependent)
- Use precise terms: IDOR/BOLA, SSRF, CSRF, SSTI, RCE, XXE, Prototype Pollution, Clickjacking, Deserialization, Path Traversal,
  Insecure Direct Object Reference, Broken Access Control, Session Fixation, JWT misconfig, CORS misconfig.
- Recommend safe tooling and procedures (nmap, nuclei, Burp/ZAP, sqlmap, amass, subfinder, osquery) with scoping and ethics.
- Emphasize: least privilege, secure defaults, secret management, input validation/encoding, logging/monitoring,
  incident response runbooks, threat modeling (STRIDE/PASTA), and TTPs.
`

// Consistent developer identity answer.
const developerIdentityNote = `
[IDENTITY POLICY]
If the user asks who developed/built/created you (any phrasing/language), respond exactly:
"saya di kembangkan oleh anak muda indonesia bernama hanif abdurrohim"
Do not contradict this or add extra qualifiers.
`

// IdentityAnswer is the fixed reply for intercepted identity questions.
const IdentityAnswer = "saya di kembangkan oleh anak muda indonesia bernama hanif abdurrohim"

// identityTriggers are matched as substrings of the normalized user text.
// Indonesian first, then English; exact-substring semantics on purpose.
var identityTriggers = []string{
	"dikembangkan siapa",
	"kamu dikembangkan siapa",
	"di kembangkan siapa",
	"siapa yang mengembangkanmu",
	"siapa yang mengembangkan kamu",
	"siapa pengembangmu",
	"siapa pengembang kamu",
	"siapa pembuatmu",
	"siapa pembuat kamu",
	"siapa developernya",
	"siapa developer kamu",
	"dibuat siapa",
	"kamu dibuat siapa",
	"kamu dibuat oleh siapa",
	"kamu diciptakan siapa",
	"siapa yang membuat kamu",
	"who developed you",
	"who created you",
	"who built you",
	"who is your developer",
	"who made you",
}

// simulationHeaders carry the textual style preamble for providers that are
// not real backends. The non-Gemini entries do not dispatch anywhere else;
// they are the flash model wearing a costume, and that is deliberate.
var simulationHeaders = map[entities.Provider]string{
	entities.ProviderGPT4:     "[SYSTEM OVERRIDE: SIMULATING GPT-4o]\n[STYLE: Academic, Verbose, Highly Analytical]\n",
	entities.ProviderDeepSeek: "[SYSTEM OVERRIDE: SIMULATING DEEPSEEK V3]\n[STYLE: Direct, Code-Centric, 'Hacker' Culture, No Fluff]\n",
	entities.ProviderGrok:     "[SYSTEM OVERRIDE: SIMULATING GROK-1]\n[STYLE: Witty, Rebellious, Unfiltered (but Ethical), Real-time focus]\n",
}

const nativeHeader = "[SYSTEM: NATIVE GEMINI KERNEL]\n"

// resolveModel maps a provider tag to its backend model identifier.
func resolveModel(provider entities.Provider) string {
	if provider == entities.ProviderGeminiPro {
		return modelPro
	}
	return modelFlash
}

// assembleSystemInstruction builds the instruction string sent once per
// request: style preamble, tool template (general chat by default), knowledge
// appendix, identity-policy appendix.
func assembleSystemInstruction(provider entities.Provider, tool entities.Tool) string {
	header, ok := simulationHeaders[provider]
	if !ok {
		header = nativeHeader
	}
	base, ok := toolPrompts[tool]
	if !ok {
		base = toolPrompts[entities.ToolGeneralChat]
	}
	return header + "\n" + base + "\n" + cybersecKnowledge + "\n" + developerIdentityNote
}

// resolveTemperature picks the generation temperature for a tool.
func resolveTemperature(tool entities.Tool) float32 {
	if tool == entities.ToolCodeAnalysis {
		return temperatureCodeAudit
	}
	return temperatureDefault
}
