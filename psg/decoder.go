package psg

// EventKind classifies a decoded command.
type EventKind int

const (
	EventRegisterWrite EventKind = iota
	EventEndOfFrame
	EventLoopStart
	EventEndOfStream
)

func (k EventKind) String() string {
	switch k {
	case EventRegisterWrite:
		return "write"
	case EventEndOfFrame:
		return "frame"
	case EventLoopStart:
		return "loop"
	case EventEndOfStream:
		return "end"
	default:
		return "unknown"
	}
}

// Event is one decoded command.
type Event struct {
	Kind   EventKind
	Offset int  // stream offset of the command byte
	Code   byte // raw command byte

	// EventRegisterWrite
	Register Register
	Value    uint16 // full register value after the write
	Latch    bool   // false for a data byte

	// EventEndOfFrame
	Wait int
}

// BackReference describes a back-reference entered by the decoder.
type BackReference struct {
	Offset int // offset of the reference code byte
	Target int
	Length int
}

// resumeDepth is the number of back-references that may be active at once.
// The compressor never emits a reference inside a referenced run.
const resumeDepth = 1

type cursor struct {
	pos       int
	remaining int
}

type decodeState struct {
	cur    cursor
	resume [resumeDepth]cursor
	depth  int
}

// Decoder turns a command stream into events. Back-references are followed
// transparently: reading resumes after the 3-byte reference once the
// referenced run is exhausted.
type Decoder struct {
	// MaxLoops bounds how many times the loop section is replayed before
	// EventEndOfStream is reported. Zero loops forever.
	MaxLoops int

	// OnBackReference, when set, is called each time a back-reference is entered.
	OnBackReference func(BackReference)

	data []byte
	st   decodeState

	loop    decodeState
	hasLoop bool

	regs   RegisterFile
	frames int
	loops  int
	// framesSinceLoop counts end-of-frame events since the loop point.
	framesSinceLoop int
	finished        bool
}

// NewDecoder creates a decoder reading data from its first byte.
func NewDecoder(data []byte) *Decoder {
	d := &Decoder{data: data}
	d.Reset()
	return d
}

// Reset rewinds the decoder to the start of the stream and clears registers.
func (d *Decoder) Reset() {
	d.st = decodeState{cur: cursor{pos: 0, remaining: len(d.data)}}
	d.loop = decodeState{}
	d.hasLoop = false
	d.regs.Reset()
	d.frames = 0
	d.loops = 0
	d.framesSinceLoop = 0
	d.finished = false
}

// Frames returns the number of frames advanced by end-of-frame commands so far.
func (d *Decoder) Frames() int {
	return d.frames
}

// Loops returns how many times decoding restarted at the loop point.
func (d *Decoder) Loops() int {
	return d.loops
}

// HasLoop reports whether a loop start marker has been decoded.
func (d *Decoder) HasLoop() bool {
	return d.hasLoop
}

// Registers returns the decoded register values.
func (d *Decoder) Registers() [RegisterCount]uint16 {
	return d.regs.Values()
}

// Finished reports whether EventEndOfStream has been returned.
func (d *Decoder) Finished() bool {
	return d.finished
}

// fetch reads the next byte, returning from an exhausted back-reference first.
func (d *Decoder) fetch() (byte, int, error) {
	if d.st.cur.remaining == 0 {
		if d.st.depth == 0 {
			return 0, d.st.cur.pos, malformed(d.st.cur.pos, "unexpected end of data, missing terminator")
		}
		d.st.depth--
		d.st.cur = d.st.resume[d.st.depth]
		if d.st.cur.remaining == 0 {
			return 0, d.st.cur.pos, malformed(d.st.cur.pos, "unexpected end of data after back-reference")
		}
	}

	pos := d.st.cur.pos
	if pos < 0 || pos >= len(d.data) {
		return 0, pos, malformed(pos, "read past end of %d byte stream", len(d.data))
	}
	d.st.cur.pos++
	d.st.cur.remaining--
	return d.data[pos], pos, nil
}

// Next decodes bytes until one event is produced.
func (d *Decoder) Next() (Event, error) {
	if d.finished {
		return Event{}, ErrStreamFinished
	}

	for {
		b, off, err := d.fetch()
		if err != nil {
			return Event{}, err
		}

		switch {
		case IsLatch(b):
			r, v, _ := d.regs.Write(b)
			return Event{Kind: EventRegisterWrite, Offset: off, Code: b, Register: r, Value: v, Latch: true}, nil

		case IsData(b):
			r, ok := d.regs.Latched()
			if !ok {
				return Event{}, malformed(off, "data byte 0x%02X without a preceding latch", b)
			}
			if !r.IsTone() {
				return Event{}, malformed(off, "data byte 0x%02X after latch of %v, expected a tone register", b, r)
			}
			_, v, _ := d.regs.Write(b)
			return Event{Kind: EventRegisterWrite, Offset: off, Code: b, Register: r, Value: v}, nil

		case IsEndOfFrame(b):
			wait := WaitFrames(b)
			d.frames += wait
			d.framesSinceLoop++
			return Event{Kind: EventEndOfFrame, Offset: off, Code: b, Wait: wait}, nil

		case IsReference(b):
			if err := d.enterReference(b, off); err != nil {
				return Event{}, err
			}

		case b == LoopStartCode:
			if d.hasLoop {
				continue
			}
			d.loop = d.st
			d.hasLoop = true
			d.framesSinceLoop = 0
			return Event{Kind: EventLoopStart, Offset: off, Code: b}, nil

		case b == EndOfStreamCode:
			if d.hasLoop && (d.MaxLoops == 0 || d.loops < d.MaxLoops) {
				if d.framesSinceLoop == 0 {
					return Event{}, malformed(off, "loop section contains no end of frame")
				}
				d.st = d.loop
				d.loops++
				d.framesSinceLoop = 0
				continue
			}
			d.finished = true
			return Event{Kind: EventEndOfStream, Offset: off, Code: b}, nil

		default:
			// reserved 0x02-0x07
		}
	}
}

func (d *Decoder) enterReference(code byte, off int) error {
	if d.st.depth >= resumeDepth {
		return malformed(off, "nested back-reference inside a referenced run")
	}

	lo, _, err := d.fetch()
	if err != nil {
		return err
	}
	hi, _, err := d.fetch()
	if err != nil {
		return err
	}

	target := int(lo) | int(hi)<<8
	length := RefLength(code)
	if target >= len(d.data) {
		return malformed(off, "back-reference offset 0x%04X beyond stream length %d", target, len(d.data))
	}
	if target+length > len(d.data) {
		return malformed(off, "back-reference run 0x%04X+%d exceeds stream length %d", target, length, len(d.data))
	}

	d.st.resume[d.st.depth] = d.st.cur
	d.st.depth++
	d.st.cur = cursor{pos: target, remaining: length}

	if d.OnBackReference != nil {
		d.OnBackReference(BackReference{Offset: off, Target: target, Length: length})
	}
	return nil
}

// DecodeAll decodes data until EventEndOfStream, following the loop at most
// maxLoops times, and returns every event including the terminal one.
// A maxLoops of zero or less never replays the loop section.
func DecodeAll(data []byte, maxLoops int) ([]Event, error) {
	d := NewDecoder(data)
	d.MaxLoops = maxLoops
	if maxLoops <= 0 {
		d.MaxLoops = -1
	}
	var events []Event
	for {
		ev, err := d.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
		if ev.Kind == EventEndOfStream {
			return events, nil
		}
	}
}
