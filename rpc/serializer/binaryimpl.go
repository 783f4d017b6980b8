package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dACK/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasSubscriber byte = 1 << 0
	hasGroup      byte = 1 << 1
	hasLabels     byte = 1 << 2
	hasClaims     byte = 1 << 3
	hasEvents     byte = 1 << 4
	hasOk         byte = 1 << 5
	hasErr        byte = 1 << 6
	hasMeta       byte = 1 << 7
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Header: MsgType + flags, filled in below
	result := make([]byte, 2, b.sizeBytes(msg))
	result[0] = byte(msg.MsgType)

	var flags byte

	if msg.Subscriber != "" {
		flags |= hasSubscriber
		result = appendString(result, msg.Subscriber)
	}
	if msg.Group != "" {
		flags |= hasGroup
		result = appendString(result, msg.Group)
	}
	if msg.Labels != nil {
		flags |= hasLabels
		result = appendStringSlice(result, msg.Labels)
	}
	if msg.Claims != nil {
		flags |= hasClaims
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Claims)))
		for _, claim := range msg.Claims {
			result = appendString(result, claim.Group)
			result = appendStringSlice(result, claim.Labels)
		}
	}
	if msg.Events != nil {
		flags |= hasEvents
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Events)))
		for _, event := range msg.Events {
			result = appendString(result, event.Subscriber)
			result = appendString(result, event.Err)
		}
	}
	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}
	if msg.Err != "" {
		flags |= hasErr
		result = appendString(result, msg.Err)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		result = binary.BigEndian.AppendUint32(result, uint32(len(msg.Meta)))
		result = append(result, msg.Meta...)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	rest := data[2:]
	var err error

	if flags&hasSubscriber != 0 {
		if msg.Subscriber, rest, err = readString(rest); err != nil {
			return fmt.Errorf("reading subscriber: %w", err)
		}
	} else {
		msg.Subscriber = ""
	}

	if flags&hasGroup != 0 {
		if msg.Group, rest, err = readString(rest); err != nil {
			return fmt.Errorf("reading group: %w", err)
		}
	} else {
		msg.Group = ""
	}

	if flags&hasLabels != 0 {
		if msg.Labels, rest, err = readStringSlice(rest); err != nil {
			return fmt.Errorf("reading labels: %w", err)
		}
	} else {
		msg.Labels = nil
	}

	if flags&hasClaims != 0 {
		var count uint32
		if count, rest, err = readUint32(rest); err != nil {
			return fmt.Errorf("reading claim count: %w", err)
		}
		msg.Claims = make([]common.Claim, count)
		for i := range msg.Claims {
			if msg.Claims[i].Group, rest, err = readString(rest); err != nil {
				return fmt.Errorf("reading claim group: %w", err)
			}
			if msg.Claims[i].Labels, rest, err = readStringSlice(rest); err != nil {
				return fmt.Errorf("reading claim labels: %w", err)
			}
		}
	} else {
		msg.Claims = nil
	}

	if flags&hasEvents != 0 {
		var count uint32
		if count, rest, err = readUint32(rest); err != nil {
			return fmt.Errorf("reading event count: %w", err)
		}
		msg.Events = make([]common.Event, count)
		for i := range msg.Events {
			if msg.Events[i].Subscriber, rest, err = readString(rest); err != nil {
				return fmt.Errorf("reading event subscriber: %w", err)
			}
			if msg.Events[i].Err, rest, err = readString(rest); err != nil {
				return fmt.Errorf("reading event error: %w", err)
			}
		}
	} else {
		msg.Events = nil
	}

	if flags&hasOk != 0 {
		if len(rest) < 1 {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = rest[0] != 0
		rest = rest[1:]
	} else {
		msg.Ok = false
	}

	if flags&hasErr != 0 {
		if msg.Err, rest, err = readString(rest); err != nil {
			return fmt.Errorf("reading error: %w", err)
		}
	} else {
		msg.Err = ""
	}

	if flags&hasMeta != 0 {
		var count uint32
		if count, rest, err = readUint32(rest); err != nil {
			return fmt.Errorf("reading meta length: %w", err)
		}
		if uint32(len(rest)) < count {
			return fmt.Errorf("data too short for meta data")
		}
		msg.Meta = make([]byte, count)
		copy(msg.Meta, rest[:count])
		rest = rest[count:]
	} else {
		msg.Meta = nil
	}

	if len(rest) != 0 {
		return fmt.Errorf("%d trailing bytes after message", len(rest))
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// sizeBytes calculates the exact serialized size of a message, used to
// allocate the result buffer once
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := 2 // MsgType + flags

	if msg.Subscriber != "" {
		size += 4 + len(msg.Subscriber)
	}
	if msg.Group != "" {
		size += 4 + len(msg.Group)
	}
	if msg.Labels != nil {
		size += stringSliceSize(msg.Labels)
	}
	if msg.Claims != nil {
		size += 4
		for _, claim := range msg.Claims {
			size += 4 + len(claim.Group) + stringSliceSize(claim.Labels)
		}
	}
	if msg.Events != nil {
		size += 4
		for _, event := range msg.Events {
			size += 4 + len(event.Subscriber) + 4 + len(event.Err)
		}
	}
	if msg.Ok {
		size++
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

func stringSliceSize(values []string) int {
	size := 4
	for _, v := range values {
		size += 4 + len(v)
	}
	return size
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendStringSlice(buf []byte, values []string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(values)))
	for _, v := range values {
		buf = appendString(buf, v)
	}
	return buf
}

func readUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, fmt.Errorf("missing length prefix")
	}
	return binary.BigEndian.Uint32(data), data[4:], nil
}

func readString(data []byte) (string, []byte, error) {
	n, rest, err := readUint32(data)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(rest)) < n {
		return "", nil, fmt.Errorf("truncated string (want %d bytes, have %d)", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

func readStringSlice(data []byte) ([]string, []byte, error) {
	count, rest, err := readUint32(data)
	if err != nil {
		return nil, nil, err
	}
	values := make([]string, count)
	for i := range values {
		if values[i], rest, err = readString(rest); err != nil {
			return nil, nil, err
		}
	}
	return values, rest, nil
}
