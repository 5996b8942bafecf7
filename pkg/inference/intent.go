package inference

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Action classifies what a user utterance requests beyond plain conversation.
type Action string

const (
	ActionChat     Action = "chat"
	ActionOpenApp  Action = "open_app"
	ActionOpenFile Action = "open_file"
	ActionSaveFile Action = "save_file"
	ActionSearch   Action = "search"
	ActionReminder Action = "reminder"
	ActionOther    Action = "other"
)

// Intent is a structured classification of a user utterance.
// Produced once per utterance and never mutated after creation.
type Intent struct {
	// Action is the requested action category.
	Action Action `json:"action"`

	// Target is the app name, file path, or query, if applicable.
	Target string `json:"target,omitempty"`

	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Parameters carries action-specific key-value details.
	Parameters map[string]any `json:"parameters"`
}

// intentPrompt is the classification prompt sent to the model.
// Low temperature keeps the JSON output consistent.
const intentPrompt = `Analyze this user message and extract the intent as JSON.

User message: %q

Return ONLY valid JSON with this structure:
{
  "action": "chat|open_app|open_file|save_file|search|reminder|other",
  "target": "specific app name, file path, or search query if applicable",
  "confidence": 0.0 to 1.0,
  "parameters": {}
}

Examples:
"open chrome" -> {"action":"open_app","target":"chrome","confidence":0.95}
"search for react tutorials" -> {"action":"search","target":"react tutorials","confidence":0.9}
"tell me a joke" -> {"action":"chat","target":null,"confidence":1.0}

JSON:`

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// decodeIntent parses a model's classification output.
// Handles markdown fences and surrounding prose by extracting the first JSON
// object. Returns ok=false when nothing usable can be decoded; callers fall
// back to FallbackIntent.
func decodeIntent(text string) (*Intent, bool) {
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return nil, false
	}

	var intent Intent
	if err := json.Unmarshal([]byte(match), &intent); err != nil {
		return nil, false
	}
	if intent.Action == "" {
		return nil, false
	}
	if intent.Parameters == nil {
		intent.Parameters = map[string]any{}
	}
	return &intent, true
}

// knownApps are the targets the keyword classifier can launch.
var knownApps = []string{"chrome", "firefox", "code", "vscode", "notepad", "explorer", "calculator"}

var (
	launchRe   = regexp.MustCompile(`open|launch|start`)
	openFileRe = regexp.MustCompile(`open.*file|show.*file`)
	saveFileRe = regexp.MustCompile(`save|create.*file|write.*file`)
	searchRe   = regexp.MustCompile(`search|google|find|look up`)
	remindRe   = regexp.MustCompile(`remind me|reminder`)
	queryTrim  = regexp.MustCompile(`(?i)search|google|find|look up|for|about`)
)

// FallbackIntent is the deterministic keyword classifier.
// It is the contract's recovery path for malformed model output, not an
// error path: it always returns a usable Intent.
func FallbackIntent(message string) *Intent {
	lower := strings.ToLower(message)

	if launchRe.MatchString(lower) {
		for _, app := range knownApps {
			if strings.Contains(lower, app) {
				return &Intent{
					Action:     ActionOpenApp,
					Target:     app,
					Confidence: 0.8,
					Parameters: map[string]any{},
				}
			}
		}
	}

	if openFileRe.MatchString(lower) {
		return &Intent{
			Action:     ActionOpenFile,
			Confidence: 0.7,
			Parameters: map[string]any{},
		}
	}

	if saveFileRe.MatchString(lower) {
		return &Intent{
			Action:     ActionSaveFile,
			Confidence: 0.7,
			Parameters: map[string]any{},
		}
	}

	if remindRe.MatchString(lower) {
		return &Intent{
			Action:     ActionReminder,
			Target:     message,
			Confidence: 0.75,
			Parameters: map[string]any{},
		}
	}

	if searchRe.MatchString(lower) {
		query := strings.TrimSpace(queryTrim.ReplaceAllString(message, ""))
		return &Intent{
			Action:     ActionSearch,
			Target:     query,
			Confidence: 0.75,
			Parameters: map[string]any{"query": query},
		}
	}

	return &Intent{
		Action:     ActionChat,
		Confidence: 1.0,
		Parameters: map[string]any{},
	}
}
