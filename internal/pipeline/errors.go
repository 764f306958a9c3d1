package pipeline

import "errors"

var (
	// ErrEmptyInput means the uploaded file had no content at all.
	ErrEmptyInput = errors.New("uploaded file is empty")

	// ErrUnsupportedType means no flow exists for the file's MIME type.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrStructuralParse means every tier, including the AI fallback,
	// failed to extract anything usable from a non-empty file.
	ErrStructuralParse = errors.New("could not extract any rows; try re-exporting the file as CSV")

	// ErrAIUnavailable marks flows that needed the AI tier while no
	// provider was reachable.
	ErrAIUnavailable = errors.New("AI fallback unavailable")
)
