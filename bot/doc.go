// Package bot contains the command-routing and event-reaction engine.
//
// The pipeline is: gateway message event -> Classifier (ignore / direct
// command / mention command) -> ParseInvocation -> Router -> handler, with the
// reply going back through the directory API. Session owns the connection
// lifecycle around that pipeline: authenticate on connect, rebuild the full
// subscription set after every successful authentication, and reconnect with
// capped backoff after transport loss.
package bot
