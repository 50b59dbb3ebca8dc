package llm

// TranscriptDelimiter separates the summary from the transcript in a single
// generation result. The prompt instructs the model to emit it verbatim.
const TranscriptDelimiter = "--TRANSCRIPTION--"

// DefaultAudioPrompt asks for a unified summary over one or more audio
// fragments, followed by a detailed transcript after the delimiter.
const DefaultAudioPrompt = "The provided audio files are fragments sharing one context. " +
	"Merge them, reconstruct the chronology, and write one complete summary. " +
	"Then, after a line containing exactly " + TranscriptDelimiter + ", include " +
	"as detailed a transcription as possible."

// DefaultDocumentPrompt asks for a summary over one or more attached documents.
const DefaultDocumentPrompt = "Summarize the attached documents. " +
	"Then, after a line containing exactly " + TranscriptDelimiter + ", include " +
	"the full extracted text."
