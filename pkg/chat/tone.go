package chat

import "strings"

// tonePresets adjust the assistant's register. Keys match the
// voiceTone setting; unknown tones fall back to friendly.
var tonePresets = map[string]string{
	"calm":         "Speak slowly and reassuringly with minimal emotion. Use simple, clear language.",
	"friendly":     "Be warm, casual, and slightly playful. Use natural conversational tone.",
	"professional": "Be concise, neutral, and task-focused. Avoid casual language.",
	"sassy":        "Be confident and witty. Keep replies very short and punchy.",
}

// basePrompt keeps replies short enough to speak aloud.
const basePrompt = `You are Vezora, a real-time voice assistant.

CRITICAL RULES:
- Default replies MUST be 1-3 short sentences ONLY.
- Use spoken language, not written explanations.
- NO long paragraphs or lists unless explicitly requested.
- Be calm, confident, and natural.
- Answer directly without preambles.`

// systemPrompt builds the assistant instruction for the given tone.
func systemPrompt(tone string) string {
	preset, ok := tonePresets[strings.ToLower(tone)]
	if !ok {
		preset = tonePresets["friendly"]
	}
	return basePrompt + "\n\n" + preset
}
