package netsync

import "github.com/danmuck/netsync/internal/protocol"

// route decodes one payload. consumed is true for liveness probes, which are
// handled by the endpoint itself and never reach application handlers.
func route(payload []byte) (msg protocol.Message, consumed bool, err error) {
	msg, err = protocol.Decode(payload)
	if err != nil {
		return protocol.Message{}, false, err
	}
	return msg, msg.Type == protocol.TypePing, nil
}
