package documents

import (
	"strings"
)

// Chunker splits long scraped page text into retrieval-sized pieces.
// Corpus JSON files arrive pre-paginated and skip this step.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minLength    int
}

// NewChunker builds a Chunker. chunkOverlap of zero disables the carry
// between adjacent chunks.
func NewChunker(chunkSize, chunkOverlap int) Chunker {
	if chunkSize == 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	return Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minLength:    100,
	}
}

// Split breaks text on sentence boundaries into chunks of at most chunkSize
// characters, carrying chunkOverlap characters between adjacent chunks.
func (c Chunker) Split(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var chunks []string
	sentences := splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		if currentChunk.Len()+len(sentence) > c.chunkSize {
			if currentChunk.Len() >= c.minLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			if c.chunkOverlap > 0 && currentChunk.Len() > c.chunkOverlap {
				tail := currentChunk.String()
				lastPart := tail[len(tail)-c.chunkOverlap:]
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	if currentChunk.Len() >= c.minLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	} else if len(chunks) == 0 && currentChunk.Len() > 0 {
		// Short pages still produce one chunk
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}
