// Package transport implements the audio packet transport for the audmon
// engine.
//
// The package covers the wire codec (sequencing and checksumming), the
// UDP socket layer, the reorder window that reassembles an ordered frame
// stream from an unreliable datagram flow, and the source-selection gate
// that lets transmitters skip work cheaply when no remote peer is
// listening.
//
// Frame loss is tolerated, never retried: a packet that arrives too far
// out of order is declared lost and replaced by silence so the stream
// never stalls.
//
// Example:
//
//	tx, err := transport.NewTransmitter(transport.TransmitterConfig{
//	    Bind:    "127.0.0.1:7878",
//	    Target:  "127.0.0.1:7879",
//	    Sources: devices,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tx.Close()
//
//	result := tx.Push("my-device", frame)
package transport
