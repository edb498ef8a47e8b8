// Package transcribe turns the speech in a video file into text.
//
// The pipeline has three steps: an [AudioExtractor] (ffmpeg) decodes the
// video's audio track into a temporary 16 kHz mono WAV file, an [Engine]
// (the Whisper CLI) transcribes it, and the text is written out. The
// temporary audio file is removed however the run ends.
package transcribe
