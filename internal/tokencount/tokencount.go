// Package tokencount approximates GPT-4-style token counts for moderator
// context sizing (spec §4.10, §8 testable property 5). No tokenizer
// library exists anywhere in the reference corpus this module was grounded
// on (DESIGN.md records the search); this is a deliberate stdlib
// approximation, not a byte-for-byte tiktoken replacement. It is
// conservative (rounds up) so the 100,000-token budget is never exceeded
// by under-counting.
package tokencount

// bytesPerToken approximates the average encoded-bytes-per-token ratio GPT-4
// class BPE tokenizers exhibit on English prose and code (~4 bytes/token).
const bytesPerToken = 4

// Count returns an approximate token count for text.
func Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / bytesPerToken
	if len(text)%bytesPerToken != 0 {
		n++
	}
	return n
}
