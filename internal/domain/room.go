package domain

// RoomID names a room. Rooms are ephemeral: one exists only while it
// has at least one member.
type RoomID string
