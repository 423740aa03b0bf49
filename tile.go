package demmosaic

import (
	"encoding/xml"
	"io"
	"math"
	"strconv"
	"strings"
)

// missingTokens are the literal tuple values treated as missing before
// any numeric comparison.
var missingTokens = map[string]struct{}{
	"":         {},
	"-9999":    {},
	"-9999.0":  {},
	"-9999.00": {},
}

// A Tile is one parsed tile document: a row-major float32 elevation grid
// plus the geographic envelope the document declares. Missing cells hold
// NaN. A Tile is immutable after parsing.
type Tile struct {
	Path     string
	Envelope Envelope
	Rows     int
	Cols     int
	Values   []float32
}

// At returns the value at row r, column c.
func (t *Tile) At(r, c int) float32 {
	return t.Values[r*t.Cols+c]
}

// ParseTile parses one FGD DEM GML document. It extracts the envelope
// corners, the grid index range, and the tuple list, and reshapes the
// values row-major with columns varying fastest; that ordering is fixed
// by the source format, never inferred per document.
//
// ParseTile does not check the grid shape against any expectation; shape
// validation is a batch concern.
func ParseTile(r io.Reader, path string, cfg Config) (*Tile, error) {
	var lowerCorner, upperCorner, low, high string
	var tupleList strings.Builder
	haveTuples := false

	// The GML uses several namespaces; match on local names only, like
	// a //gml:name search.
	decoder := xml.NewDecoder(r)
	var capture *strings.Builder
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Path: path, Reason: "malformed XML", Err: err}
		}
		switch token := token.(type) {
		case xml.StartElement:
			capture = nil
			switch token.Name.Local {
			case "lowerCorner":
				if lowerCorner == "" {
					lowerCorner, err = captureText(decoder)
				}
			case "upperCorner":
				if upperCorner == "" {
					upperCorner, err = captureText(decoder)
				}
			case "low":
				if low == "" {
					low, err = captureText(decoder)
				}
			case "high":
				if high == "" {
					high, err = captureText(decoder)
				}
			case "tupleList":
				if !haveTuples {
					haveTuples = true
					capture = &tupleList
				}
			}
			if err != nil {
				return nil, &ParseError{Path: path, Reason: "malformed XML", Err: err}
			}
		case xml.CharData:
			if capture != nil {
				capture.Write(token)
			}
		case xml.EndElement:
			capture = nil
		}
	}

	if lowerCorner == "" || upperCorner == "" {
		return nil, &ParseError{Path: path, Reason: "missing envelope corners"}
	}
	if low == "" || high == "" {
		return nil, &ParseError{Path: path, Reason: "missing grid envelope"}
	}
	if !haveTuples {
		return nil, &ParseError{Path: path, Reason: "missing tuple list"}
	}

	// Corner order is "lat lon".
	latMin, lonMin, err := parsePair(lowerCorner)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad lower corner", Err: err}
	}
	latMax, lonMax, err := parsePair(upperCorner)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad upper corner", Err: err}
	}

	// Grid index order is "x y".
	lowX, lowY, err := parseIndexPair(low)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad grid low", Err: err}
	}
	highX, highY, err := parseIndexPair(high)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "bad grid high", Err: err}
	}
	cols := highX - lowX + 1
	rows := highY - lowY + 1
	if rows <= 0 || cols <= 0 {
		return nil, &ParseError{Path: path, Reason: "non-positive grid shape"}
	}

	values := parseTuples(tupleList.String(), cfg.MissingThreshold)
	if len(values) != rows*cols {
		return nil, &ParseError{
			Path:   path,
			Reason: "value count " + strconv.Itoa(len(values)) + " != " + strconv.Itoa(rows*cols),
		}
	}

	return &Tile{
		Path: path,
		Envelope: Envelope{
			LatMin: latMin,
			LatMax: latMax,
			LonMin: lonMin,
			LonMax: lonMax,
		},
		Rows:   rows,
		Cols:   cols,
		Values: values,
	}, nil
}

// parseTuples converts tuple list text into values. Each line is
// "category,elevation"; lines without a comma are treated as a bare
// value. Missing tokens and values at or below missingThreshold become
// NaN; so do unparsable tokens.
func parseTuples(text string, missingThreshold float64) []float32 {
	nan := float32(math.NaN())
	lines := strings.Split(text, "\n")
	values := make([]float32, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		token := line
		if i := strings.LastIndexByte(line, ','); i >= 0 {
			token = strings.TrimSpace(line[i+1:])
		}
		if _, ok := missingTokens[token]; ok {
			values = append(values, nan)
			continue
		}
		switch v, err := strconv.ParseFloat(token, 64); {
		case err != nil:
			values = append(values, nan)
		case v <= missingThreshold:
			values = append(values, nan)
		default:
			values = append(values, float32(v))
		}
	}
	return values
}

// captureText returns the character data up to the current element's end.
func captureText(decoder *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return "", err
		}
		switch token := token.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(token)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func parsePair(s string) (float64, float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, errFieldCount(len(fields))
	}
	a, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseIndexPair(s string) (int, int, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, errFieldCount(len(fields))
	}
	a, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

type errFieldCount int

func (e errFieldCount) Error() string {
	return "expected 2 fields, got " + strconv.Itoa(int(e))
}
