// Package execs runs the external programs opsbox drives (kubectl, ffmpeg,
// whisper), as defined by configuration.
//
// A [Command] describes the program, its fixed arguments and the environment
// it may see. Only a small set of essential variables is inherited from the
// caller unless more are requested through env or envFrom. An [Executor]
// runs a [Command] inside an otel span, optionally streaming output.
package execs
