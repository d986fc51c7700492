// Package dedupe drops client retries of a chat message.
//
// A client may attach a client_message_id to client:send_message. The
// coordinator marks Key(sender, session, id) before persisting and skips
// the message if the key was already marked within the TTL.
package dedupe
