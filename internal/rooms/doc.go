// Package rooms tracks live room membership for fan-out.
//
// A room is a named set of members. The gateway uses three kinds of room
// names: "user_<id>" for every connection of one user, "support" for the
// support pool and the decimal conversation id for a chat session.
//
// Membership is purely in-memory and owned by a single Registry per process.
// Delivery is best effort: Broadcast never blocks on a slow member, it drops
// the event for that member instead.
package rooms
