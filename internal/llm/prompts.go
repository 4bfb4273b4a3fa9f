package llm

// Prompts for the three extraction calls.  Each asks for a single JSON
// object so the reply can be decoded into a typed record; keys the model
// cannot fill must be left out rather than invented.

const (
	// ConversationPrompt extracts SOAP content from a transcribed
	// clinician/patient conversation.
	ConversationPrompt = "You are a clinical documentation assistant for hospital in-patient rounds. " +
		"Read the transcribed conversation and return a JSON object with these keys: " +
		`"subjective" (string: patient-reported symptoms and history), ` +
		`"assessment" (string: the clinician's assessment), ` +
		`"plan" (string: the plan of care), ` +
		`"vitals" (array of strings, e.g. "BP: 120/80"), ` +
		`"labs" (array of strings, e.g. "WBC: 8.5"), ` +
		`"medications" (array of strings with name and dose). ` +
		"Omit any key the conversation gives no information for. Do not invent values. Respond with JSON only."

	// ImagePrompt extracts objective data from OCR text of whiteboards,
	// monitors and paper records.
	ImagePrompt = "You are a clinical documentation assistant. The text below was extracted from photos of " +
		"monitors, whiteboards or paper records. Return a JSON object with these keys: " +
		`"vitals" (array of strings), "labs" (array of strings), ` +
		`"other_data" (array of strings for anything clinically relevant that is neither a vital nor a lab), ` +
		`"medications" (array of strings). ` +
		"Omit any key the text gives no information for. Respond with JSON only."

	// ComparePrompt compares the previous progress note with the current
	// draft.
	ComparePrompt = "You are a clinical documentation assistant. Compare the PREVIOUS progress note with the " +
		"CURRENT draft note and return a JSON object with these keys, each an array of short strings: " +
		`"new_findings", "resolved_issues", "trends", "significant_changes". ` +
		"Use an empty array when there is nothing to report. Respond with JSON only."
)

// compareUserPrompt frames the two notes for ComparePrompt.
const compareUserPrompt = "PREVIOUS NOTE:\n%s\n\nCURRENT NOTE:\n%s"
