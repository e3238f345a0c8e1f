// Package ws implements the WebSocket feed served in schedule mode at
// /ws/stream.
//
// A Hub sends the live board reports to a client on connect, again on every
// broadcast tick, and immediately after each scheduled run (Publish).
// Messages look like:
//
//	{
//	  "event": "snapshot" | "run",
//	  "run":   { /* last run status, run events only */ },
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// Clients may follow a subset of boards with ?board=CARD,OPS (or a repeated
// board parameter); reports of other boards are left out of their messages.
// The upgrader accepts all origins.
package ws
