package wire

import "errors"

// Sentence is an ordered sequence of words terminated, on the wire, by an
// empty word. The in-memory representation omits the terminator.
type Sentence []Word

// EncodeSentence returns the wire representation of a sentence: each word in
// order, followed by the empty terminator word.
func EncodeSentence(s Sentence) []byte {
	out := make([]byte, 0, 16*len(s))
	for _, w := range s {
		out = append(out, EncodeWord(w)...)
	}
	out = append(out, EncodeWord(nil)...)
	return out
}

// DecodeSentence decodes exactly one terminated sentence from the head of
// buf. It returns the words, the number of bytes consumed (including the
// terminator), and whether a complete sentence was present. A false ok with
// a nil error means buf held a partial sentence; the caller should supply
// more bytes and retry, matching DecodeWord's ErrNeedMoreBytes convention.
func DecodeSentence(buf []byte) (sentence Sentence, consumed int, ok bool, err error) {
	pos := 0
	var words Sentence
	for {
		word, n, err := DecodeWord(buf[pos:])
		if err != nil {
			if errors.Is(err, ErrNeedMoreBytes) {
				return nil, 0, false, nil
			}
			return nil, 0, false, err
		}
		pos += n
		if len(word) == 0 {
			return words, pos, true, nil
		}
		words = append(words, Word(word))
	}
}

// SentenceDecoder assembles sentences out of arbitrarily chunked byte
// streams. Callers append bytes as they arrive from the transport (Write)
// and drain complete sentences as they become available (Next). Feeding the
// decoder one byte at a time produces the same sequence of sentences as
// feeding it the whole buffer at once.
type SentenceDecoder struct {
	buf []byte
}

// NewSentenceDecoder creates an empty decoder.
func NewSentenceDecoder() *SentenceDecoder {
	return &SentenceDecoder{}
}

// Write appends p to the decoder's internal buffer. It never fails.
func (d *SentenceDecoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next attempts to decode one complete sentence from the buffered bytes.
// ok is false if the buffer holds only a partial sentence so far; this is
// the normal steady state while a stream is still arriving, not an error.
// A non-nil error is a fatal framing error and the connection should close.
func (d *SentenceDecoder) Next() (sentence Sentence, ok bool, err error) {
	words, consumed, ok, err := DecodeSentence(d.buf)
	if err != nil || !ok {
		return nil, false, err
	}
	// Compact in place: discard the consumed sentence without retaining a
	// growing backing array across the connection's lifetime.
	d.buf = append(d.buf[:0], d.buf[consumed:]...)
	return words, true, nil
}

// Buffered returns the number of unconsumed bytes currently held.
func (d *SentenceDecoder) Buffered() int {
	return len(d.buf)
}
