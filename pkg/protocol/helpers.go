package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// EncodingFloat32 names the chunk payload encoding: base64 of little-endian
// float32 samples in [-1.0, 1.0).
const EncodingFloat32 = "f32le-base64"

// NewHelloMessage creates a hello message for a new stream
func NewHelloMessage(streamID string, sampleRate int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		StreamID:   streamID,
		Encoding:   EncodingFloat32,
		SampleRate: sampleRate,
	})
}

// NewAckMessage creates an ack for chunk seq
func NewAckMessage(streamID string, seq int64, samples, sampleRate int, peak float32) (*Message, error) {
	var ms float64
	if sampleRate > 0 {
		ms = float64(samples) * 1000 / float64(sampleRate)
	}
	return NewMessage(TypeAck, AckData{
		StreamID:   streamID,
		Seq:        seq,
		Samples:    samples,
		DurationMs: ms,
		Peak:       peak,
	})
}

// NewErrorMessage creates an error message for chunk seq
func NewErrorMessage(streamID string, seq int64, err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{
		StreamID: streamID,
		Seq:      seq,
		Error:    err.Error(),
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHelloData extracts hello data from a message
func (m *Message) GetHelloData() (*HelloData, error) {
	var data HelloData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAckData extracts ack data from a message
func (m *Message) GetAckData() (*AckData, error) {
	var data AckData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
