// Package textsink provides a concrete mlbench.Sink that formats detail,
// summary, and trace-event lines as text or JSON and writes them to
// arbitrary io.Writers, with optional rotated trace-file output. Grounded
// on the teacher's serializer/Formatter (format.go, formatter/formatter.go)
// and sanitizer (sanitizer/sanitizer.go) packages.
package textsink

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// serializer turns a line's pieces into bytes for one of the two supported
// formats. Grounded on the teacher's serializer type in format.go, trimmed
// to this domain's three line shapes (detail, summary, trace event).
type serializer struct {
	buf             []byte
	timestampFormat string
	json            bool
}

func newSerializer(jsonFormat bool, timestampFormat string) *serializer {
	if timestampFormat == "" {
		timestampFormat = time.RFC3339Nano
	}
	return &serializer{
		buf:             make([]byte, 0, 256),
		timestampFormat: timestampFormat,
		json:            jsonFormat,
	}
}

func (s *serializer) reset() { s.buf = s.buf[:0] }

// line formats a plain detail/summary line: timestamp plus text, verbatim.
func (s *serializer) line(ts time.Time, text string) []byte {
	s.reset()
	if s.json {
		s.buf = append(s.buf, `{"time":"`...)
		s.buf = ts.AppendFormat(s.buf, s.timestampFormat)
		s.buf = append(s.buf, `","line":"`...)
		s.writeJSONString(text)
		s.buf = append(s.buf, "\"}\n"...)
		return s.buf
	}
	s.buf = ts.AppendFormat(s.buf, s.timestampFormat)
	s.buf = append(s.buf, ' ')
	s.buf = append(s.buf, text...)
	s.buf = append(s.buf, '\n')
	return s.buf
}

// traceEvent formats a trace event with a pid/tid identity and key/value
// pairs, relative to an origin timestamp the way spec.md's trace stream
// records elapsed time rather than wall-clock time.
func (s *serializer) traceEvent(elapsed time.Duration, pidTid, name string, kv []any) []byte {
	s.reset()
	if s.json {
		s.buf = append(s.buf, `{"ts_ns":`...)
		s.buf = strconv.AppendInt(s.buf, elapsed.Nanoseconds(), 10)
		s.buf = append(s.buf, `,"pid_tid":"`...)
		s.writeJSONString(pidTid)
		s.buf = append(s.buf, `","name":"`...)
		s.writeJSONString(name)
		s.buf = append(s.buf, '"')
		if len(kv) > 0 {
			s.buf = append(s.buf, `,"kv":[`...)
			for i, v := range kv {
				if i > 0 {
					s.buf = append(s.buf, ',')
				}
				s.writeJSONValue(v)
			}
			s.buf = append(s.buf, ']')
		}
		s.buf = append(s.buf, "}\n"...)
		return s.buf
	}
	s.buf = strconv.AppendInt(s.buf, elapsed.Nanoseconds(), 10)
	s.buf = append(s.buf, " ns "...)
	s.buf = append(s.buf, pidTid...)
	s.buf = append(s.buf, ' ')
	s.buf = append(s.buf, name...)
	for _, v := range kv {
		s.buf = append(s.buf, ' ')
		s.writeTxtValue(v)
	}
	s.buf = append(s.buf, '\n')
	return s.buf
}

func (s *serializer) writeTxtValue(v any) {
	switch val := v.(type) {
	case string:
		s.buf = append(s.buf, val...)
	case int:
		s.buf = strconv.AppendInt(s.buf, int64(val), 10)
	case int64:
		s.buf = strconv.AppendInt(s.buf, val, 10)
	case uint64:
		s.buf = strconv.AppendUint(s.buf, val, 10)
	case float64:
		s.buf = strconv.AppendFloat(s.buf, val, 'f', -1, 64)
	case bool:
		s.buf = strconv.AppendBool(s.buf, val)
	case nil:
		s.buf = append(s.buf, "nil"...)
	case time.Time:
		s.buf = val.AppendFormat(s.buf, s.timestampFormat)
	case time.Duration:
		s.buf = append(s.buf, val.String()...)
	case error:
		s.buf = append(s.buf, val.Error()...)
	case fmt.Stringer:
		s.buf = append(s.buf, val.String()...)
	case []byte:
		s.buf = hex.AppendEncode(s.buf, val)
	default:
		// Struct/map/pointer values fall back to a compact spew dump, the
		// same escape hatch the teacher's writeRawValue uses for anything
		// without a direct text representation.
		var b bytes.Buffer
		dumper := &spew.ConfigState{
			Indent:                  " ",
			MaxDepth:                10,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(&b, val)
		s.buf = append(s.buf, bytes.TrimSpace(b.Bytes())...)
	}
}

func (s *serializer) writeJSONValue(v any) {
	switch val := v.(type) {
	case string:
		s.buf = append(s.buf, '"')
		s.writeJSONString(val)
		s.buf = append(s.buf, '"')
	case int:
		s.buf = strconv.AppendInt(s.buf, int64(val), 10)
	case int64:
		s.buf = strconv.AppendInt(s.buf, val, 10)
	case uint64:
		s.buf = strconv.AppendUint(s.buf, val, 10)
	case float64:
		s.buf = strconv.AppendFloat(s.buf, val, 'f', -1, 64)
	case bool:
		s.buf = strconv.AppendBool(s.buf, val)
	case nil:
		s.buf = append(s.buf, "null"...)
	case time.Time:
		s.buf = append(s.buf, '"')
		s.buf = val.AppendFormat(s.buf, s.timestampFormat)
		s.buf = append(s.buf, '"')
	case time.Duration:
		s.buf = strconv.AppendInt(s.buf, val.Nanoseconds(), 10)
	case error:
		s.buf = append(s.buf, '"')
		s.writeJSONString(val.Error())
		s.buf = append(s.buf, '"')
	case fmt.Stringer:
		s.buf = append(s.buf, '"')
		s.writeJSONString(val.String())
		s.buf = append(s.buf, '"')
	default:
		marshaled, err := json.Marshal(val)
		if err != nil {
			s.buf = append(s.buf, '"')
			s.writeJSONString(fmt.Sprintf("%+v", val))
			s.buf = append(s.buf, '"')
			return
		}
		s.buf = append(s.buf, marshaled...)
	}
}

func (s *serializer) writeJSONString(str string) {
	for i := 0; i < len(str); {
		c := str[i]
		if c < ' ' || c == '"' || c == '\\' {
			switch c {
			case '\\', '"':
				s.buf = append(s.buf, '\\', c)
			case '\n':
				s.buf = append(s.buf, '\\', 'n')
			case '\r':
				s.buf = append(s.buf, '\\', 'r')
			case '\t':
				s.buf = append(s.buf, '\\', 't')
			default:
				s.buf = append(s.buf, fmt.Sprintf(`\u%04x`, c)...)
			}
			i++
			continue
		}
		start := i
		for i < len(str) && str[i] >= ' ' && str[i] != '"' && str[i] != '\\' {
			i++
		}
		s.buf = append(s.buf, str[start:i]...)
	}
}
