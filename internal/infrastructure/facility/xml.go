package facility

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ablemap/internal/domain/entity"
)

const serviceErrorMsg = "SERVICE ERROR"

// listing is a decoded response of the facility service.
type listing struct {
	ErrMsg     string
	TotalCount int
	Records    []entity.FacilityRecord
}

// decodeListing collects every servList element regardless of nesting,
// mapping child element names to their text.
func decodeListing(data []byte) (*listing, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	out := &listing{}

	var (
		record  entity.FacilityRecord
		depth   int // depth inside the current servList
		field   string
		text    strings.Builder
		capture string // top-level scalar being read (errMsg, totalCount)
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode facility xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case record == nil && name == "servList":
				record = entity.FacilityRecord{}
				depth = 0
			case record != nil:
				depth++
				if depth == 1 {
					field = name
					text.Reset()
				}
			case name == "errMsg" || name == "totalCount":
				capture = name
				text.Reset()
			}
		case xml.CharData:
			if (record != nil && depth == 1) || capture != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch {
			case record != nil && depth == 0:
				out.Records = append(out.Records, record)
				record = nil
			case record != nil:
				if depth == 1 {
					record[field] = strings.TrimSpace(text.String())
				}
				depth--
			case capture != "":
				v := strings.TrimSpace(text.String())
				if capture == "errMsg" {
					out.ErrMsg = v
				} else if n, err := strconv.Atoi(v); err == nil {
					out.TotalCount = n
				}
				capture = ""
			}
		}
	}
	return out, nil
}
