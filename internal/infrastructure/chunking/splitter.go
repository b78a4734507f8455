package chunking

import "strings"

type Splitter struct {
	ChunkSize int
	Overlap   int
	Separator string
}

func NewSplitter(chunkSize, overlap int, separator string) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if separator == "" {
		separator = "\n\n"
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		Separator: separator,
	}
}

// Split accumulates paragraphs into size-bounded chunks, seeding each
// new chunk with the trailing Overlap characters of the previous one.
// A paragraph that alone exceeds ChunkSize is split by sentence
// boundaries; a single oversized sentence is hard-cut at the character
// boundary. Chunk order equals input order.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}

	sepLen := runeLen(s.Separator)
	chunks := make([]string, 0, runeLen(text)/s.ChunkSize+1)
	current := ""

	for _, para := range strings.Split(text, s.Separator) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if runeLen(current)+runeLen(para)+sepLen > s.ChunkSize {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = s.seed(current) + s.Separator + para
				continue
			}
			// A single paragraph exceeds the chunk size: fall back to
			// sentence-level accumulation.
			sentenceChunks := s.splitLong(para)
			if len(sentenceChunks) > 0 {
				chunks = append(chunks, sentenceChunks[:len(sentenceChunks)-1]...)
				current = sentenceChunks[len(sentenceChunks)-1]
			}
			continue
		}

		if current == "" {
			current = para
		} else {
			current += s.Separator + para
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// seed returns the overlap carried from a just-closed chunk into the
// next one, clamped to the chunk's own length.
func (s *Splitter) seed(closed string) string {
	if s.Overlap <= 0 {
		return ""
	}
	runes := []rune(closed)
	if len(runes) <= s.Overlap {
		return ""
	}
	return string(runes[len(runes)-s.Overlap:])
}

func (s *Splitter) splitLong(text string) []string {
	chunks := make([]string, 0, runeLen(text)/s.ChunkSize+1)
	current := ""

	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if runeLen(current)+runeLen(sentence)+1 > s.ChunkSize {
			if current != "" {
				chunks = append(chunks, current)
				if seed := s.seed(current); seed != "" {
					current = seed + " " + sentence
				} else {
					current = sentence
				}
				// The seeded buffer may itself exceed the limit when
				// the sentence is oversized; hard-cut below.
				if runeLen(current) <= s.ChunkSize {
					continue
				}
				sentence = current
				current = ""
			}
			// A single sentence exceeds the chunk size: hard cut at the
			// character boundary, carrying the trailing overlap forward.
			runes := []rune(sentence)
			for len(runes) > s.ChunkSize {
				chunks = append(chunks, string(runes[:s.ChunkSize]))
				carry := s.ChunkSize - s.Overlap
				if carry <= 0 {
					carry = s.ChunkSize
				}
				runes = runes[carry:]
			}
			current = strings.TrimSpace(string(runes))
			continue
		}

		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// splitSentences cuts after ". ", "? " and "! ", keeping the
// punctuation with the preceding sentence.
func splitSentences(text string) []string {
	marked := text
	for _, boundary := range []string{". ", "? ", "! "} {
		marked = strings.ReplaceAll(marked, boundary, string(boundary[0])+"\x00")
	}
	return strings.Split(marked, "\x00")
}

func runeLen(s string) int {
	return len([]rune(s))
}
