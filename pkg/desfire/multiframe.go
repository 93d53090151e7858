package desfire

// maxFrameBody is the largest body a single write frame may carry; longer
// payloads are split across multiple 0xAF-chained frames.
const maxFrameBody = 52

// exchangeChained transmits apdu and, while the card keeps answering with
// StatusAdditionalFrame, re-issues empty {0x90, 0xAF, 0, 0, 0x00} frames,
// concatenating every data portion. It returns the aggregated data and the
// final status byte; postprocess runs once on that aggregate.
func exchangeChained(card Card, apdu []byte) ([]byte, byte, error) {
	data, sw, err := Transmit(card, apdu)
	if err != nil {
		return nil, 0, err
	}
	status, ok := splitStatus(sw)
	if !ok {
		return nil, 0, &TransportError{Cause: errShortISOResponse}
	}

	aggregate := append([]byte{}, data...)
	for status == StatusAdditionalFrame {
		frame := []byte{0x90, 0xAF, 0x00, 0x00, 0x00}
		data, sw, err = Transmit(card, frame)
		if err != nil {
			return nil, 0, err
		}
		status, ok = splitStatus(sw)
		if !ok {
			return nil, 0, &TransportError{Cause: errShortISOResponse}
		}
		aggregate = append(aggregate, data...)
	}
	return aggregate, status, nil
}

// writeChunked splits fullBody (the already-wrapped write body — secure
// messaging wraps the whole logical command once, before chunking) into
// maxFrameBody-sized pieces: the first frame uses ins, subsequent frames
// use INS 0xAF, continuing while the card answers StatusAdditionalFrame and
// bytes remain. The final frame's data and status are returned for a single
// postprocess call.
func writeChunked(card Card, ins byte, fullBody []byte) ([]byte, byte, error) {
	offset := 0
	first := true
	var lastData []byte
	var lastStatus byte

	for {
		end := offset + maxFrameBody
		if end > len(fullBody) {
			end = len(fullBody)
		}
		chunk := fullBody[offset:end]
		offset = end

		frameIns := byte(0xAF)
		if first {
			frameIns = ins
			first = false
		}

		data, sw, err := Transmit(card, buildAPDU(frameIns, chunk))
		if err != nil {
			return nil, 0, err
		}
		status, ok := splitStatus(sw)
		if !ok {
			return nil, 0, &TransportError{Cause: errShortISOResponse}
		}
		lastData = data
		lastStatus = status

		if offset >= len(fullBody) {
			break
		}
		if status != StatusAdditionalFrame {
			break
		}
	}
	return lastData, lastStatus, nil
}
