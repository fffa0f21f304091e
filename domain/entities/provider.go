package entities

// Provider is the user-selectable model label. Only the two Gemini entries
// are real backends; the rest are served by the flash model with a style
// preamble ("simulation"). See usecase prompt assembly.
type Provider string

const (
	ProviderGeminiFlash Provider = "Gemini 2.5 Flash"
	ProviderGeminiPro   Provider = "Gemini 3 Pro (Preview)"
	ProviderGPT4        Provider = "GPT-4o (Simulated)"
	ProviderDeepSeek    Provider = "DeepSeek V3 (Simulated)"
	ProviderGrok        Provider = "Grok-1 (Simulated)"
)

// Providers lists the selectable providers in display order.
func Providers() []Provider {
	return []Provider{
		ProviderGeminiFlash,
		ProviderGeminiPro,
		ProviderGPT4,
		ProviderDeepSeek,
		ProviderGrok,
	}
}

// Tool is the selected task mode; it picks the system instruction template.
type Tool string

const (
	ToolGeneralChat      Tool = "general_chat"
	ToolCodeAnalysis     Tool = "code_analysis"
	ToolFaceAnalysis     Tool = "face_analysis"
	ToolCommandGenerator Tool = "command_generator"
)

// Tools lists the selectable tools in display order.
func Tools() []Tool {
	return []Tool{
		ToolGeneralChat,
		ToolCodeAnalysis,
		ToolFaceAnalysis,
		ToolCommandGenerator,
	}
}
