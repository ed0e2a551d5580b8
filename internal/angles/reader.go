package angles

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Metadata element names, after namespace stripping. The granule metadata
// qualifies these with a schema-versioned prefix (n1: etc); encoding/xml
// reports the local name separately so matching ignores the prefix.
const (
	elemAngleBlock = "Viewing_Incidence_Angles_Grids"
	elemZenith     = "Zenith"
	elemAzimuth    = "Azimuth"
	elemValues     = "VALUES"
	elemMeanBlock  = "Mean_Viewing_Incidence_Angle"
	elemMeanZen    = "ZENITH_ANGLE"
	elemMeanAzi    = "AZIMUTH_ANGLE"
)

// ErrInvalidAttribute is reported when a bandId/detectorId attribute is
// missing or not an integer.
var ErrInvalidAttribute = errors.New("invalid angle block attribute")

// ErrInvalidNumber is reported when a mean-angle scalar is not parseable
// as a floating-point number.
var ErrInvalidNumber = errors.New("invalid mean angle value")

// ParseMode selects how the reader treats data-level errors (bad
// attributes, malformed grid rows, unparseable mean scalars) found during
// the streaming pass. Document-level XML errors always abort regardless of
// mode.
type ParseMode int

const (
	// ModeLenient records data-level errors as diagnostics and keeps
	// parsing. The row counter still advances past a malformed row, so the
	// affected grid stays incomplete rather than silently misaligned.
	ModeLenient ParseMode = iota
	// ModeStrict aborts the parse on the first data-level error.
	ModeStrict
)

// Diagnostic is a non-fatal problem found while parsing in lenient mode.
// Offset is the byte offset of the input where the problem surfaced.
type Diagnostic struct {
	Element string
	Offset  int64
	Err     error
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at byte %d: %v", d.Element, d.Offset, d.Err)
}

// Result is the outcome of one parse: the zenith and azimuth grid
// collections and any diagnostics collected along the way. The mean band
// angles ride on the Zenith collection; the metadata writer attaches them
// there and downstream consumers read them from there.
type Result struct {
	Zenith      *MetaGrid
	Azimuth     *MetaGrid
	Diagnostics []Diagnostic
}

// AnglesReader parses viewing-incidence-angle grids out of granule
// metadata documents. A reader is a reusable configuration; each Parse
// call builds its own state and collections, so one reader may be used
// from multiple goroutines as long as each call gets its own input stream.
type AnglesReader struct {
	mode ParseMode
	dim  int
}

// NewAnglesReader returns a reader with the reference grid dimension and
// lenient error handling.
func NewAnglesReader() *AnglesReader {
	return &AnglesReader{
		mode: ModeLenient,
		dim:  GridDimension,
	}
}

// SetMode selects strict or lenient handling of data-level errors.
func (ar *AnglesReader) SetMode(mode ParseMode) {
	ar.mode = mode
}

// ParseFile opens path and parses it. The file is closed on every return
// path.
func (ar *AnglesReader) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()
	return ar.Parse(f)
}

// Parse reads one metadata document from r to completion. On a
// document-level XML error it returns a nil result and the error: no
// partial result escapes a failed read. Data-level errors follow the
// configured ParseMode.
func (ar *AnglesReader) Parse(r io.Reader) (*Result, error) {
	h := newAngleHandler(ar.dim, ar.mode)
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("metadata read failed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			err = h.startElement(t, dec.InputOffset())
		case xml.EndElement:
			err = h.endElement(t, dec.InputOffset())
		case xml.CharData:
			h.characters(t)
		}
		if err != nil {
			return nil, err
		}
	}

	return h.result(), nil
}

// handlerState is the position of the handler within the document
// structure. Only the elements the handler cares about move it; everything
// else in the document is passed over.
type handlerState int

const (
	stateIdle handlerState = iota
	stateAngleBlock
	stateAxisGrid
	stateMeanBlock
)

// angleHandler is the per-parse state machine. Every Parse call constructs
// a fresh handler, so nothing is shared between invocations except the
// immutable band ordering constant.
type angleHandler struct {
	dim  int
	mode ParseMode

	state handlerState
	axis  Axis

	detectorID int
	bandID     int
	rowCounter int
	grid       *AngleGrid
	mean       *MeanBandAngle

	// buffer accumulates character data for the innermost open element. It
	// is reset at both element entry and exit so content is never carried
	// across sibling elements.
	buffer strings.Builder

	zenith      *MetaGrid
	azimuth     *MetaGrid
	diagnostics []Diagnostic
}

func newAngleHandler(dim int, mode ParseMode) *angleHandler {
	return &angleHandler{
		dim:        dim,
		mode:       mode,
		state:      stateIdle,
		detectorID: -1,
		bandID:     -1,
		zenith:     NewMetaGrid(BandOrder()),
		azimuth:    NewMetaGrid(BandOrder()),
	}
}

func (h *angleHandler) result() *Result {
	return &Result{
		Zenith:      h.zenith,
		Azimuth:     h.azimuth,
		Diagnostics: h.diagnostics,
	}
}

// report handles a data-level error according to the parse mode: strict
// aborts, lenient records a diagnostic and keeps going.
func (h *angleHandler) report(element string, offset int64, err error) error {
	if h.mode == ModeStrict {
		return fmt.Errorf("%s at byte %d: %w", element, offset, err)
	}
	h.diagnostics = append(h.diagnostics, Diagnostic{Element: element, Offset: offset, Err: err})
	return nil
}

func (h *angleHandler) startElement(t xml.StartElement, offset int64) error {
	h.buffer.Reset()

	switch t.Name.Local {
	case elemAngleBlock:
		band, detector, err := angleBlockAttrs(t)
		if err != nil {
			// The block's grids are unkeyable without valid IDs; leave the
			// IDs negative so the axis handlers skip them.
			h.bandID, h.detectorID = -1, -1
			h.state = stateAngleBlock
			return h.report(elemAngleBlock, offset, err)
		}
		h.bandID, h.detectorID = band, detector
		h.state = stateAngleBlock

	case elemZenith, elemAzimuth:
		if h.state != stateAngleBlock || h.bandID < 0 {
			return nil
		}
		if t.Name.Local == elemZenith {
			h.axis = AxisZenith
		} else {
			h.axis = AxisAzimuth
		}
		h.grid = NewAngleGrid(h.dim)
		h.rowCounter = 0
		h.state = stateAxisGrid

	case elemMeanBlock:
		band, err := intAttr(t, "bandId")
		if err != nil {
			h.mean = nil
			h.state = stateMeanBlock
			return h.report(elemMeanBlock, offset, fmt.Errorf("%w: %v", ErrInvalidAttribute, err))
		}
		h.mean = &MeanBandAngle{BandID: band}
		h.state = stateMeanBlock
	}
	return nil
}

func (h *angleHandler) endElement(t xml.EndElement, offset int64) error {
	defer h.buffer.Reset()

	switch t.Name.Local {
	case elemValues:
		if h.state != stateAxisGrid || h.grid == nil {
			return nil
		}
		row := h.rowCounter
		// The counter advances even when the row is rejected. Skipping the
		// increment would shift every later row up by one and produce a
		// structurally complete grid with wrong values; advancing leaves a
		// hole that assembly-time completeness checking catches.
		h.rowCounter++
		if err := h.grid.SetRow(row, strings.ReplaceAll(h.buffer.String(), "\n", "")); err != nil {
			return h.report(elemValues, offset, err)
		}

	case elemZenith, elemAzimuth:
		if h.state != stateAxisGrid {
			return nil
		}
		if h.bandID >= 0 {
			if t.Name.Local == elemZenith {
				h.zenith.AddGrid(h.detectorID, h.bandID, h.grid)
			} else {
				h.azimuth.AddGrid(h.detectorID, h.bandID, h.grid)
			}
		}
		h.grid = nil
		h.state = stateAngleBlock

	case elemAngleBlock:
		h.bandID, h.detectorID = -1, -1
		h.state = stateIdle

	case elemMeanZen, elemMeanAzi:
		if h.state != stateMeanBlock || h.mean == nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(h.buffer.String()), 64)
		if err != nil {
			return h.report(t.Name.Local, offset, fmt.Errorf("%w: %q", ErrInvalidNumber, strings.TrimSpace(h.buffer.String())))
		}
		if t.Name.Local == elemMeanZen {
			h.mean.Zenith = v
		} else {
			h.mean.Azimuth = v
		}

	case elemMeanBlock:
		// Mean angles are attached to the zenith collection; that is where
		// the reference toolchain reads them back from.
		if h.mean != nil {
			h.zenith.SetBandMeanAngles(*h.mean)
		}
		h.mean = nil
		h.state = stateIdle
	}
	return nil
}

func (h *angleHandler) characters(cd xml.CharData) {
	h.buffer.Write(cd)
}

func angleBlockAttrs(t xml.StartElement) (band, detector int, err error) {
	band, err = intAttr(t, "bandId")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	detector, err = intAttr(t, "detectorId")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
	}
	return band, detector, nil
}

func intAttr(t xml.StartElement, name string) (int, error) {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			v, err := strconv.Atoi(strings.TrimSpace(a.Value))
			if err != nil {
				return 0, fmt.Errorf("attribute %s=%q is not an integer", name, a.Value)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("attribute %s missing", name)
}
