package types

// Client -> Server
// Join:
//   role: "leader" | "candidate" | "observer"
//   name: string
//   candidate (role "candidate" only):
//     preferredRoles: string[] // at most 3
//     pitch: string
//
// Bid:
//   amount: number
//
// StartAuction: {}
// ForceNextLot: {}
// Pause: {}
// Resume: {}
// ResetRoom: {}
//
// Roster upload is not a socket message; it is POST /rooms/{code}/roster (CSV, admin secret).

// Server -> Client
// Snapshot:
//   version: number
//   room: RoomSnapshot
//   log: LogLine[] // tail of the system log
//
// Error (only to the client whose command was rejected):
//   kind: "validation" | "precondition" | "protocol"
//   error: string
//
// Welcome (once, on connect):
//   clientId: string
