// Package signaling implements the rendezvous core of the server.
//
// The Hub owns a connection Registry and a room directory (Rooms) and
// runs a single loop that serializes message dispatch, disconnect
// teardown and the periodic liveness sweep. Clients wrap one websocket
// connection each with dedicated read and write pumps; the hub talks to
// them only through their buffered send queues, so a slow or dead peer
// never stalls delivery to the rest of a room.
package signaling
