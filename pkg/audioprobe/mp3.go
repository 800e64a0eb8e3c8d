package audioprobe

import "encoding/binary"

// mp3Header is one parsed MPEG audio frame header.
type mp3Header struct {
	versionID      uint8 // 0=2.5, 1=reserved, 2=2, 3=1
	layer          uint8 // 1=I, 2=II, 3=III (note: the layer number, not the header bit pattern)
	protectionBit  bool  // true => no CRC, false => CRC present
	bitrateKbps    uint16
	sampleRate     uint32
	padding        bool
	channelMode    uint8 // 3 = mono
}

// parseMP3Header parses a 4-byte frame header. It returns false for any
// reserved bitrate/sample-rate/version/layer combination.
func parseMP3Header(h []byte) (mp3Header, bool) {
	if len(h) < 4 {
		return mp3Header{}, false
	}
	b0, b1, b2, b3 := h[0], h[1], h[2], h[3]
	if b0 != 0xFF || (b1&0xE0) != 0xE0 {
		return mp3Header{}, false
	}
	versionID := (b1 >> 3) & 0x03  // 00=2.5, 01=reserved, 10=2, 11=1
	layerBits := (b1 >> 1) & 0x03  // 01=III, 10=II, 11=I
	if versionID == 0x01 || layerBits == 0x00 {
		return mp3Header{}, false
	}
	var layer uint8
	switch layerBits {
	case 0b01:
		layer = 3
	case 0b10:
		layer = 2
	case 0b11:
		layer = 1
	default:
		return mp3Header{}, false
	}
	protectionBit := (b1 & 0x01) != 0 // 0 => CRC present
	bitrateIndex := (b2 >> 4) & 0x0F
	sampleRateIndex := (b2 >> 2) & 0x03
	if bitrateIndex == 0 || bitrateIndex == 0x0F || sampleRateIndex == 0x03 {
		return mp3Header{}, false
	}
	padding := ((b2 >> 1) & 0x01) != 0
	channelMode := (b3 >> 6) & 0x03

	var sampleRate uint32
	switch versionID {
	case 0b11: // MPEG1
		sampleRate = [3]uint32{44100, 48000, 32000}[sampleRateIndex]
	case 0b10: // MPEG2
		sampleRate = [3]uint32{22050, 24000, 16000}[sampleRateIndex]
	case 0b00: // MPEG2.5
		sampleRate = [3]uint32{11025, 12000, 8000}[sampleRateIndex]
	default:
		return mp3Header{}, false
	}

	var bitrateKbps uint16
	mpeg1L3 := [16]uint16{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}
	mpeg2L3 := [16]uint16{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0}
	mpeg1L2 := [16]uint16{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0}
	mpeg1L1 := [16]uint16{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0}
	mpeg2L1 := [16]uint16{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}
	switch {
	case versionID == 0b11 && layerBits == 0b01:
		bitrateKbps = mpeg1L3[bitrateIndex]
	case (versionID == 0b10 || versionID == 0b00) && layerBits == 0b01:
		bitrateKbps = mpeg2L3[bitrateIndex]
	case versionID == 0b11 && layerBits == 0b10:
		bitrateKbps = mpeg1L2[bitrateIndex]
	case (versionID == 0b10 || versionID == 0b00) && layerBits == 0b10:
		bitrateKbps = mpeg2L3[bitrateIndex]
	case versionID == 0b11 && layerBits == 0b11:
		bitrateKbps = mpeg1L1[bitrateIndex]
	case (versionID == 0b10 || versionID == 0b00) && layerBits == 0b11:
		bitrateKbps = mpeg2L1[bitrateIndex]
	default:
		bitrateKbps = 0
	}
	if bitrateKbps == 0 {
		return mp3Header{}, false
	}

	return mp3Header{
		versionID:     versionID,
		layer:         layer,
		protectionBit: protectionBit,
		bitrateKbps:   bitrateKbps,
		sampleRate:    sampleRate,
		padding:       padding,
		channelMode:   channelMode,
	}, true
}

func (h mp3Header) samplesPerFrame() uint32 {
	switch h.layer {
	case 1:
		return 384
	case 2:
		return 1152
	case 3:
		if h.versionID == 0b11 {
			return 1152
		}
		return 576
	default:
		return 0
	}
}

func (h mp3Header) sideInfoLen() int {
	if h.layer != 3 {
		return 0
	}
	mono := h.channelMode == 0b11
	if h.versionID == 0b11 { // MPEG1
		if mono {
			return 17
		}
		return 32
	}
	// MPEG2/2.5
	if mono {
		return 9
	}
	return 17
}

func (h mp3Header) frameLength() (int, bool) {
	if h.sampleRate == 0 {
		return 0, false
	}
	bps := uint64(h.bitrateKbps) * 1000
	spf := uint64(h.samplesPerFrame())
	base := (spf * bps) / (8 * uint64(h.sampleRate))
	padUnits := 0
	if h.padding {
		if h.layer == 1 {
			padUnits = 4
		} else {
			padUnits = 1
		}
	}
	return int(base) + padUnits, true
}

func synchsafeToU32(b []byte) uint32 {
	return (uint32(b[0]&0x7F) << 21) | (uint32(b[1]&0x7F) << 14) | (uint32(b[2]&0x7F) << 7) | uint32(b[3]&0x7F)
}

// parseMP3Duration skips an ID3v2 prefix if present, locates the first
// valid frame, then prefers a Xing/Info or VBRI tag's frame count over
// manually counting frames (spec §4.7 MP3).
func parseMP3Duration(buf []byte) (float64, bool) {
	offset := 0
	if len(buf) >= 10 && string(buf[0:3]) == "ID3" {
		flags := buf[5]
		size := int(synchsafeToU32(buf[6:10]))
		skip := 10 + size
		if flags&0x10 != 0 {
			skip += 10
		}
		if skip >= len(buf) {
			return 0, false
		}
		offset = skip
	}

	i := offset
	var firstPos int
	var header mp3Header
	found := false
	for i+4 <= len(buf) {
		if h, ok := parseMP3Header(buf[i : i+4]); ok {
			firstPos = i
			header = h
			found = true
			break
		}
		i++
	}
	if !found {
		return 0, false
	}

	if frames, ok := parseXingInfo(buf, firstPos, header); ok {
		totalSamples := uint64(frames) * uint64(header.samplesPerFrame())
		return float64(totalSamples) / float64(header.sampleRate), true
	}
	if frames, ok := parseVBRI(buf, firstPos, header); ok {
		totalSamples := uint64(frames) * uint64(header.samplesPerFrame())
		return float64(totalSamples) / float64(header.sampleRate), true
	}

	// Fallback: count frames by walking the stream.
	pos := firstPos
	var frames uint64
	lastValid := firstPos
	for pos+4 <= len(buf) {
		h, ok := parseMP3Header(buf[pos : pos+4])
		if ok {
			flen, ok := h.frameLength()
			if !ok || flen < 4 {
				break
			}
			frames++
			lastValid = pos
			pos += flen
		} else {
			if len(buf) >= 128 && string(buf[len(buf)-128:len(buf)-125]) == "TAG" {
				break
			}
			pos++
		}
		if frames > 1 && pos <= lastValid {
			break
		}
	}
	if frames == 0 || header.sampleRate == 0 {
		return 0, false
	}
	totalSamples := frames * uint64(header.samplesPerFrame())
	return float64(totalSamples) / float64(header.sampleRate), true
}

func parseXingInfo(buf []byte, firstPos int, h mp3Header) (uint32, bool) {
	crc := 0
	if !h.protectionBit {
		crc = 2
	}
	start := firstPos + 4 + crc + h.sideInfoLen()
	if start+12 > len(buf) {
		return 0, false
	}
	tag := string(buf[start : start+4])
	if tag != "Xing" && tag != "Info" {
		return 0, false
	}
	flags := binary.BigEndian.Uint32(buf[start+4 : start+8])
	if flags&0x1 == 0 {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[start+8 : start+12]), true
}

func parseVBRI(buf []byte, firstPos int, h mp3Header) (uint32, bool) {
	crc := 0
	if !h.protectionBit {
		crc = 2
	}
	offset := firstPos + 4 + crc + 32
	if offset+26 > len(buf) {
		return 0, false
	}
	if string(buf[offset:offset+4]) != "VBRI" {
		return 0, false
	}
	framesOff := offset + 14
	if framesOff+4 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[framesOff : framesOff+4]), true
}
