package audioprobe

import "encoding/binary"

// box is one parsed ISO-BMFF box header: Size is the box's total size
// (header + body) honoring the 32-bit, 64-bit-extended (size==1), and
// to-end (size==0) encodings; HeaderLen is how many bytes the header itself
// occupied (8, or 16 when extended).
type box struct {
	Type      string
	Size      uint64
	HeaderLen int
}

// readBox reads one box header at buf[pos:]. ok is false if there isn't
// enough data left for a header, or an extended size claims to run past the
// end of buf.
func readBox(buf []byte, pos int) (b box, ok bool) {
	if pos+8 > len(buf) {
		return box{}, false
	}
	size := uint64(binary.BigEndian.Uint32(buf[pos : pos+4]))
	typ := string(buf[pos+4 : pos+8])
	boxSize := size
	header := 8
	switch size {
	case 1:
		if pos+16 > len(buf) {
			return box{}, false
		}
		boxSize = binary.BigEndian.Uint64(buf[pos+8 : pos+16])
		header = 16
	case 0:
		boxSize = uint64(len(buf) - pos)
	}
	if boxSize < uint64(header) || pos+int(boxSize) > len(buf) {
		return box{}, false
	}
	return box{Type: typ, Size: boxSize, HeaderLen: header}, true
}

// parseMP4Duration walks top-level boxes looking for `moov`, then descends
// into it (spec §4.7 MP4/M4A/MOV).
func parseMP4Duration(buf []byte) (float64, bool) {
	pos := 0
	for pos+8 <= len(buf) {
		b, ok := readBox(buf, pos)
		if !ok {
			return 0, false
		}
		if b.Type == "moov" {
			start := pos + b.HeaderLen
			end := pos + int(b.Size)
			if end > len(buf) {
				return 0, false
			}
			d, found := parseMoovForDuration(buf[start:end])
			return d, found
		}
		pos += int(b.Size)
	}
	return 0, false
}

func parseMoovForDuration(moov []byte) (float64, bool) {
	// Prefer mvhd.
	pos := 0
	for pos+8 <= len(moov) {
		b, ok := readBox(moov, pos)
		if !ok {
			return 0, false
		}
		if b.Type == "mvhd" {
			body := moov[pos+b.HeaderLen : pos+int(b.Size)]
			if d, found := parseMvhd(body); found {
				return d, true
			}
		}
		pos += int(b.Size)
	}

	// Fallback: find mdhd inside an audio trak.
	pos = 0
	for pos+8 <= len(moov) {
		b, ok := readBox(moov, pos)
		if !ok {
			return 0, false
		}
		if b.Type == "trak" {
			body := moov[pos+b.HeaderLen : pos+int(b.Size)]
			if d, found := parseTrakForAudioMdhd(body); found {
				return d, true
			}
		}
		pos += int(b.Size)
	}
	return 0, false
}

func parseMvhd(body []byte) (float64, bool) {
	return parseMvhdOrMdhd(body)
}

// parseMvhdOrMdhd reads the shared mvhd/mdhd layout: version 0 has 32-bit
// timescale/duration at offsets 12/16, version 1 has 64-bit fields at
// offsets 20/24.
func parseMvhdOrMdhd(body []byte) (float64, bool) {
	if len(body) < 20 {
		return 0, false
	}
	version := body[0]
	var timescale uint32
	var duration uint64
	if version == 1 {
		if len(body) < 32 {
			return 0, false
		}
		timescale = binary.BigEndian.Uint32(body[20:24])
		duration = binary.BigEndian.Uint64(body[24:32])
	} else {
		if len(body) < 16 {
			return 0, false
		}
		timescale = binary.BigEndian.Uint32(body[12:16])
		duration = uint64(binary.BigEndian.Uint32(body[16:20]))
	}
	if timescale == 0 {
		return 0, false
	}
	return float64(duration) / float64(timescale), true
}

func parseTrakForAudioMdhd(trak []byte) (float64, bool) {
	pos := 0
	for pos+8 <= len(trak) {
		b, ok := readBox(trak, pos)
		if !ok {
			return 0, false
		}
		if b.Type == "mdia" {
			body := trak[pos+b.HeaderLen : pos+int(b.Size)]
			return parseMdiaForAudioMdhd(body)
		}
		pos += int(b.Size)
	}
	return 0, false
}

func parseMdiaForAudioMdhd(mdia []byte) (float64, bool) {
	pos := 0
	handlerIsAudio := false
	var mdhdDur float64
	haveMdhd := false

	for pos+8 <= len(mdia) {
		b, ok := readBox(mdia, pos)
		if !ok {
			return 0, false
		}
		switch b.Type {
		case "hdlr":
			body := mdia[pos+b.HeaderLen : pos+int(b.Size)]
			if len(body) >= 12 && string(body[8:12]) == "soun" {
				handlerIsAudio = true
			}
		case "mdhd":
			body := mdia[pos+b.HeaderLen : pos+int(b.Size)]
			if d, found := parseMvhdOrMdhd(body); found {
				mdhdDur = d
				haveMdhd = true
			}
		}
		pos += int(b.Size)
	}
	if handlerIsAudio && haveMdhd {
		return mdhdDur, true
	}
	return 0, false
}
