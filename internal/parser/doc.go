package parser

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Word 97-2003 File Information Block offsets.
const (
	fibIdent       = 0xA5EC
	fibFlags       = 0x000A
	fibFcMin       = 0x0018
	fibCcpText     = 0x004C
	fibFcClx       = 0x01A2
	fibLcbClx      = 0x01A6
	flagEncrypted  = 0x0100
	flagWhichTable = 0x0200
	fcCompressed   = 0x40000000
)

var zipMagic = []byte("PK\x03\x04")

// DOC extracts the main document text of a legacy Word binary file. Files
// labelled application/msword that are really OOXML packages are handed to
// the DOCX extractor.
type DOC struct{}

func (DOC) Extract(ctx context.Context, data []byte) (text string, err error) {
	if bytes.HasPrefix(data, zipMagic) {
		return DOCX{}.Extract(ctx, data)
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", parseFailure("doc", r)
		}
	}()

	reader, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", parseFailure("doc", err)
	}

	streams := make(map[string][]byte)
	for entry, err := reader.Next(); err == nil; entry, err = reader.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			buf := make([]byte, entry.Size)
			if _, err := io.ReadFull(entry, buf); err != nil {
				return "", parseFailure("doc", err)
			}
			streams[entry.Name] = buf
		}
	}

	wordDoc, ok := streams["WordDocument"]
	if !ok {
		return "", parseFailure("doc", "missing WordDocument stream")
	}
	text, err = wordText(wordDoc, streams)
	if err != nil {
		return "", parseFailure("doc", err)
	}
	return text, nil
}

type piece struct {
	cpStart, cpEnd int
	offset         int
	compressed     bool
}

// wordText reads the main story (the first ccpText characters) through the
// piece table in the table stream, falling back to the contiguous fcMin
// range for files without a usable CLX.
func wordText(wordDoc []byte, streams map[string][]byte) (string, error) {
	if len(wordDoc) < fibCcpText+4 {
		return "", errors.New("truncated file information block")
	}
	le := binary.LittleEndian
	if le.Uint16(wordDoc) != fibIdent {
		return "", errors.New("not a Word document")
	}
	flags := le.Uint16(wordDoc[fibFlags:])
	if flags&flagEncrypted != 0 {
		return "", errors.New("encrypted documents are not supported")
	}
	ccpText := int(le.Uint32(wordDoc[fibCcpText:]))

	if len(wordDoc) >= fibLcbClx+4 {
		name := "0Table"
		if flags&flagWhichTable != 0 {
			name = "1Table"
		}
		table := streams[name]
		fc := int(le.Uint32(wordDoc[fibFcClx:]))
		lcb := int(le.Uint32(wordDoc[fibLcbClx:]))
		if lcb > 0 && fc >= 0 && fc+lcb <= len(table) {
			if pieces, err := parsePieceTable(table[fc : fc+lcb]); err == nil {
				return decodePieces(wordDoc, pieces, ccpText)
			}
		}
	}

	fcMin := int(le.Uint32(wordDoc[fibFcMin:]))
	return decodeRange(wordDoc, fcMin, ccpText)
}

func parsePieceTable(clx []byte) ([]piece, error) {
	le := binary.LittleEndian
	for i := 0; i < len(clx); {
		switch clx[i] {
		case 0x01:
			if i+3 > len(clx) {
				return nil, errors.New("truncated property modifier")
			}
			i += 3 + int(le.Uint16(clx[i+1:]))
		case 0x02:
			if i+5 > len(clx) {
				return nil, errors.New("truncated piece table")
			}
			lcb := int(le.Uint32(clx[i+1:]))
			plc := clx[i+5:]
			if lcb > len(plc) || lcb < 4 || (lcb-4)%12 != 0 {
				return nil, fmt.Errorf("invalid piece table length %d", lcb)
			}
			n := (lcb - 4) / 12
			pieces := make([]piece, n)
			for k := range pieces {
				pcd := plc[4*(n+1)+8*k:]
				fc := le.Uint32(pcd[2:])
				p := piece{
					cpStart: int(le.Uint32(plc[4*k:])),
					cpEnd:   int(le.Uint32(plc[4*(k+1):])),
					offset:  int(fc),
				}
				if fc&fcCompressed != 0 {
					p.compressed = true
					p.offset = int(fc&^fcCompressed) / 2
				}
				pieces[k] = p
			}
			return pieces, nil
		default:
			return nil, fmt.Errorf("unexpected clx marker 0x%02x", clx[i])
		}
	}
	return nil, errors.New("no piece table")
}

func decodePieces(wordDoc []byte, pieces []piece, limit int) (string, error) {
	var sb strings.Builder
	for _, p := range pieces {
		if p.cpStart >= limit {
			break
		}
		n := min(p.cpEnd, limit) - p.cpStart
		if n <= 0 {
			continue
		}
		width := 2
		if p.compressed {
			width = 1
		}
		if p.offset < 0 || p.offset+n*width > len(wordDoc) {
			return "", fmt.Errorf("piece at cp %d exceeds WordDocument stream", p.cpStart)
		}
		s, err := decodeText(wordDoc[p.offset:p.offset+n*width], p.compressed)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	return normalizeWordText(sb.String()), nil
}

func decodeRange(wordDoc []byte, fcMin, ccp int) (string, error) {
	if fcMin < 0 || ccp < 0 || fcMin+ccp > len(wordDoc) {
		return "", errors.New("text range exceeds WordDocument stream")
	}
	if fcMin+2*ccp <= len(wordDoc) && looksUTF16(wordDoc[fcMin:fcMin+2*ccp], ccp) {
		s, err := decodeText(wordDoc[fcMin:fcMin+2*ccp], false)
		return normalizeWordText(s), err
	}
	s, err := decodeText(wordDoc[fcMin:fcMin+ccp], true)
	return normalizeWordText(s), err
}

// looksUTF16 reports whether the ccp-byte prefix of the range holds enough
// NUL bytes to be uncompressed UTF-16 rather than 8-bit text.
func looksUTF16(b []byte, ccp int) bool {
	return ccp > 0 && bytes.Count(b[:ccp], []byte{0})*4 >= ccp
}

func decodeText(b []byte, compressed bool) (string, error) {
	if compressed {
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		return string(out), err
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	return string(out), err
}

// normalizeWordText maps Word control marks to plain whitespace and keeps
// only the displayed result of fields, dropping their instruction text.
func normalizeWordText(s string) string {
	var sb strings.Builder
	var inCode []bool
	for _, r := range s {
		switch r {
		case 0x13:
			inCode = append(inCode, true)
			continue
		case 0x14:
			if len(inCode) > 0 {
				inCode[len(inCode)-1] = false
			}
			continue
		case 0x15:
			if len(inCode) > 0 {
				inCode = inCode[:len(inCode)-1]
			}
			continue
		}
		if slices.Contains(inCode, true) {
			continue
		}
		switch {
		case r == '\r', r == 0x0b, r == 0x0c:
			sb.WriteByte('\n')
		case r == 0x07:
			sb.WriteByte('\t')
		case r == '\n', r == '\t':
			sb.WriteRune(r)
		case r < 0x20:
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
