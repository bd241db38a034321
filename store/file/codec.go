package file

import (
	"errors"
	"strings"

	"github.com/collapsinghierarchy/rfidgate/model"
)

// ErrMalformedRecord is returned by ParseLine for lines that do not split
// into three fields or have an empty UID. Lookup and Stream skip such lines.
var ErrMalformedRecord = errors.New("malformed record")

// ParseLine decodes one "UID,NAME,ROLE" line. The first and last commas are
// the field boundaries, so a name may itself contain commas.
func ParseLine(line string) (model.UidRecord, error) {
	line = strings.TrimSpace(line)
	first := strings.IndexByte(line, ',')
	last := strings.LastIndexByte(line, ',')
	if first < 0 || first == last {
		return model.UidRecord{}, ErrMalformedRecord
	}
	uid := model.NormalizeUID(line[:first])
	if uid == "" {
		return model.UidRecord{}, ErrMalformedRecord
	}
	return model.UidRecord{
		UID:  uid,
		Name: line[first+1 : last],
		Role: model.Role(strings.ToUpper(strings.TrimSpace(line[last+1:]))),
	}, nil
}

// FormatLine encodes a normalized record without the trailing newline.
func FormatLine(rec model.UidRecord) string {
	rec = rec.Normalized()
	return rec.UID + "," + rec.Name + "," + string(rec.Role)
}
