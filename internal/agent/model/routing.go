package model

// Destination is where one fragment of a question is answered.
type Destination string

const (
	DestinationSQL       Destination = "sql"
	DestinationKnowledge Destination = "knowledge"
	DestinationUnhandled Destination = "unhandled"
)

// ParseDestination maps a label emitted by the splitter; anything unknown is unhandled.
func ParseDestination(label string) Destination {
	switch Destination(label) {
	case DestinationSQL:
		return DestinationSQL
	case DestinationKnowledge:
		return DestinationKnowledge
	default:
		return DestinationUnhandled
	}
}

// RoutedPart is one fragment of a user question and where it goes.
// EmbeddingFile is set if and only if Destination is knowledge; use the
// constructors to keep that true.
type RoutedPart struct {
	Text          string
	Destination   Destination
	EmbeddingFile string
}

func SQLPart(text string) RoutedPart {
	return RoutedPart{Text: text, Destination: DestinationSQL}
}

func KnowledgePart(text, embeddingFile string) RoutedPart {
	return RoutedPart{Text: text, Destination: DestinationKnowledge, EmbeddingFile: embeddingFile}
}

func UnhandledPart(text string) RoutedPart {
	return RoutedPart{Text: text, Destination: DestinationUnhandled}
}

// Valid reports whether the embedding-file invariant holds.
func (p RoutedPart) Valid() bool {
	if p.Destination == DestinationKnowledge {
		return p.EmbeddingFile != ""
	}
	return p.EmbeddingFile == ""
}
