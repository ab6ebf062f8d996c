// Package audio decodes lesson audio to 16-bit PCM and plays time ranges of
// it, plus one-shot cue sounds, through the oto/v3 library.
package audio
