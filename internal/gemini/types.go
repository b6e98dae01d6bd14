package gemini

// ImageInput is an inline image sent to or returned by the provider.
type ImageInput struct {
	Data     []byte
	MimeType string
}

// Response is the flattened first candidate of an edit call.
type Response struct {
	Text   string
	Images []ImageInput
	// Blocked holds the provider's block or finish reason when the call was
	// stopped by a safety filter.
	Blocked string
}
