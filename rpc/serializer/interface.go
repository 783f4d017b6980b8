package serializer

import "github.com/ValentinKolb/dACK/rpc/common"

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a message into a byte array
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a message
	Deserialize(b []byte, msg *common.Message) error
}
