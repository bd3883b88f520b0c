// Package events defines the typed event stream of the assistant.
//
// Event kinds are grouped by namespace:
//
//   - interaction.*
//   - command.*
//   - assistant_speech.*
//
// interaction events
//
//   - StateChanged (interaction.state_changed): the interaction state moved
//     from one state to another.
//   - WakeDetected (interaction.wake_detected): a wake probe contained the
//     wake phrase; carries the inline command when one was spoken.
//
// command events
//
//   - CommandProcessed (command.processed): a spoken or typed command was
//     dispatched; carries the outcome and the reply or error.
//
// assistant_speech events
//
//   - SpeechQueued (assistant_speech.queued): text was accepted for speaking.
//   - SpeechSpoken (assistant_speech.spoken): text finished playing.
//
// Envelope is the JSON form sent to listeners outside the process.
package events
