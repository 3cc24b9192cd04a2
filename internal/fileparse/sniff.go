package fileparse

import (
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"
)

// sniffLen is how many leading bytes are inspected.
const sniffLen = 512

// Kind is the detected content type of an upload.
type Kind struct {
	types.Type
}

// Sniff detects the content type from the leading bytes of data.
func Sniff(data []byte) Kind {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	typ, err := filetype.Match(head)
	if err != nil {
		return Kind{types.Unknown}
	}
	return Kind{typ}
}

// Binary reports whether the content is a recognized non-text format.
func (k Kind) Binary() bool {
	return k.Type != types.Unknown
}

// Zip reports whether the content is a zip container such as an XLSX
// workbook.
func (k Kind) Zip() bool {
	return k.Type == matchers.TypeXlsx || k.Type == matchers.TypeZip
}

func (k Kind) String() string {
	if k.Type == types.Unknown {
		return "text"
	}
	return k.MIME.Value
}
