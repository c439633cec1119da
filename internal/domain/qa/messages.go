package qa

// FallbackAnswer is returned when the index holds no records.
const FallbackAnswer = "माफ़ करें, मुझे इसका उत्तर नहीं मिला। | Sorry, I couldn't find an answer."

// LowConfidencePrefix precedes answers whose confidence is under the threshold.
const LowConfidencePrefix = "मुझे पूरा यकीन नहीं है, लेकिन यह मदद कर सकता है:\n\n" +
	"I'm not fully confident, but this might help:\n\n"

// DefaultConfidenceThreshold applies when none is configured.
const DefaultConfidenceThreshold = 0.3
