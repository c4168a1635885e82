// Package bridge relays protocol messages between an endpoint tree in this
// process and one in another process.
//
// Messages travel over a byte stream as length-prefixed CBOR frames. Each
// frame carries one envelope whose data has been normalized through its JSON
// form, so both sides decode payloads exactly as they would in-process.
//
// A bridge listens on a local endpoint and forwards every protocol event it
// sees. Frames read from the stream are dispatched on the same endpoint,
// tagged with the bridge's name so the bridge does not send them back.
package bridge
